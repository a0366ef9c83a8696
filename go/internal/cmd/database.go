package main

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/draftroom/go/internal/dbconfig"
	"github.com/rs/zerolog/log"
)

// Database holds the pgx pool used by the pick store and the database/sql handle used by the
// audit and outbox repositories.
type Database struct {
	Pool *pgxpool.Pool
	DB   *sql.DB
}

func setupDatabase(ctx context.Context) (*Database, error) {
	dbConfig := dbconfig.NewConfigFromEnv()

	pool, err := dbConfig.NewPool(ctx)
	if err != nil {
		return nil, err
	}

	database, err := dbConfig.OpenSQL(ctx)
	if err != nil {
		pool.Close()
		return nil, err
	}

	log.Info().
		Str("dsn", dbConfig.Redacted()).
		Int32("max_conns", dbConfig.MaxConns).
		Msg("connected to database")
	return &Database{Pool: pool, DB: database}, nil
}

func (d *Database) Close() {
	d.Pool.Close()
	if err := d.DB.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close database")
	}
}
