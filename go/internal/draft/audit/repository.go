package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net"

	"github.com/google/uuid"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/sqlc-dev/pqtype"
)

// Repository writes audit entries through database/sql.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) InsertAuditLog(ctx context.Context, entry models.AuditLog) error {
	metadata, err := toNullRawMessage(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode audit metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, action, league_id, actor_type, actor_id, metadata, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.Action, entry.LeagueID, string(entry.ActorType),
		nullActor(entry.ActorID), metadata, toInet(entry.IPAddress), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// ListByLeague returns a league's audit trail, newest first.
func (r *Repository) ListByLeague(ctx context.Context, leagueID uuid.UUID, limit int) ([]models.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, action, league_id, actor_type, actor_id, metadata, ip_address, created_at
		FROM audit_logs WHERE league_id = $1
		ORDER BY created_at DESC LIMIT $2`, leagueID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		var (
			entry     models.AuditLog
			actorType string
			actorID   uuid.NullUUID
			metadata  pqtype.NullRawMessage
			ip        pqtype.Inet
		)
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.LeagueID, &actorType, &actorID, &metadata, &ip, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		entry.ActorType = models.ActorType(actorType)
		if actorID.Valid {
			entry.ActorID = &actorID.UUID
		}
		if metadata.Valid {
			if err := json.Unmarshal(metadata.RawMessage, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode audit metadata: %w", err)
			}
		}
		if ip.Valid {
			entry.IPAddress = ip.IPNet.IP.String()
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, nil
}

func nullActor(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func toNullRawMessage(metadata map[string]any) (pqtype.NullRawMessage, error) {
	if len(metadata) == 0 {
		return pqtype.NullRawMessage{}, nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return pqtype.NullRawMessage{}, err
	}
	return pqtype.NullRawMessage{RawMessage: raw, Valid: true}, nil
}

// toInet parses a client address. Anything unparseable is stored as NULL.
func toInet(addr string) pqtype.Inet {
	if addr == "" {
		return pqtype.Inet{}
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	ip := net.ParseIP(addr)
	if ip == nil {
		return pqtype.Inet{}
	}
	bits := 128
	if v4 := ip.To4(); v4 != nil {
		ip = v4
		bits = 32
	}
	return pqtype.Inet{IPNet: net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, Valid: true}
}
