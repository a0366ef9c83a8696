package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/mcdev12/draftroom/go/internal/dbconfig"
	"github.com/mcdev12/draftroom/go/internal/draft/audit"
)

// Prints a league's audit trail, newest first, one JSON object per line.
func main() {
	limit := flag.Int("limit", 100, "maximum entries to print")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: audit_trail [-limit n] <league-id>")
		os.Exit(2)
	}
	leagueID, err := uuid.Parse(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid league id: %v\n", err)
		os.Exit(2)
	}

	db, err := dbconfig.NewConfigFromEnv().OpenSQL(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect error: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	entries, err := audit.NewRepository(db).ListByLeague(context.Background(), leagueID, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list audit logs: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			fmt.Fprintf(os.Stderr, "encode: %v\n", err)
			os.Exit(1)
		}
	}
}
