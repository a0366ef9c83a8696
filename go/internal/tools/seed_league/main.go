package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/go/internal/dbconfig"
	"github.com/mcdev12/draftroom/go/internal/draft/league"
	"github.com/mcdev12/draftroom/go/internal/draft/pick"
)

// Seeds a league, its captains and player pool from a JSON file shaped like
// league.CreateLeagueRequest.
func main() {
	ctx := context.Background()

	path := "go/internal/assets/sample_league.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	// 1) Load the league file
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", path, err)
		os.Exit(1)
	}
	var req league.CreateLeagueRequest
	if err := json.Unmarshal(data, &req); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal league: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect to DB
	pool, err := dbconfig.NewConfigFromEnv().NewPool(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect error: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Create through the league app so settings are validated
	repo := pick.NewRepository(pool)
	picks := pick.NewApp(repo, nil, nil, nil)
	leagues := league.NewApp(repo, picks, nil, nil, clockwork.NewRealClock())

	created, err := leagues.CreateLeague(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create league: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf(
		"League seed: id=%s name=%q captains=%d players=%d total_picks=%d\n",
		created.ID, created.Name, len(created.DraftOrder), len(req.Players), pick.OrderFor(created).TotalPicks(),
	)
}
