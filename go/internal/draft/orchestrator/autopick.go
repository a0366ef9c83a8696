package orchestrator

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/mcdev12/draftroom/go/internal/models"
)

// ErrNoPlayers is returned by strategies when the pool is empty.
var ErrNoPlayers = errors.New("no available players")

// AutoPickStrategy chooses a player for a captain whose pick expired.
type AutoPickStrategy interface {
	Name() string
	SelectPlayer(ctx context.Context, league *models.League, captain models.Captain, available []models.Player) (models.Player, error)
}

// NewStrategy returns the strategy registered under name. seed is used by the random strategy;
// zero seeds from the current time.
func NewStrategy(name string, seed int64) (AutoPickStrategy, error) {
	switch name {
	case "", "ranked":
		return NewRankedStrategy(), nil
	case "random":
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		return NewRandomStrategy(seed), nil
	default:
		return nil, fmt.Errorf("unknown auto-pick strategy %q", name)
	}
}

// RankedStrategy takes the best-ranked player, breaking ties by name then id.
type RankedStrategy struct{}

func NewRankedStrategy() *RankedStrategy {
	return &RankedStrategy{}
}

func (s *RankedStrategy) Name() string { return "ranked" }

func (s *RankedStrategy) SelectPlayer(_ context.Context, _ *models.League, _ models.Captain, available []models.Player) (models.Player, error) {
	if len(available) == 0 {
		return models.Player{}, ErrNoPlayers
	}
	return slices.MinFunc(available, func(a, b models.Player) int {
		return cmp.Or(
			cmp.Compare(a.Rank, b.Rank),
			cmp.Compare(a.FullName, b.FullName),
			cmp.Compare(a.ID.String(), b.ID.String()),
		)
	}), nil
}

// RandomStrategy uses random choice for the player.
type RandomStrategy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomStrategy constructs a RandomStrategy with its own seed.
func NewRandomStrategy(seed int64) *RandomStrategy {
	return &RandomStrategy{
		rng: rand.New(rand.NewSource(seed)),
	}
}

func (s *RandomStrategy) Name() string { return "random" }

func (s *RandomStrategy) SelectPlayer(_ context.Context, _ *models.League, _ models.Captain, available []models.Player) (models.Player, error) {
	if len(available) == 0 {
		return models.Player{}, ErrNoPlayers
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return available[s.rng.Intn(len(available))], nil
}
