package orchestrator

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankedStrategy_SelectPlayer(t *testing.T) {
	a := models.Player{ID: uuid.MustParse("00000000-0000-0000-0000-00000000000a"), FullName: "Avery", Rank: 2}
	b := models.Player{ID: uuid.MustParse("00000000-0000-0000-0000-00000000000b"), FullName: "Blake", Rank: 1}
	c := models.Player{ID: uuid.MustParse("00000000-0000-0000-0000-00000000000c"), FullName: "Avery", Rank: 1}
	d := models.Player{ID: uuid.MustParse("00000000-0000-0000-0000-00000000000d"), FullName: "Avery", Rank: 1}

	tests := []struct {
		name      string
		available []models.Player
		want      models.Player
	}{
		{"lowest rank wins", []models.Player{a, b}, b},
		{"rank tie broken by name", []models.Player{b, c}, c},
		{"name tie broken by id", []models.Player{d, c}, c},
		{"single player", []models.Player{a}, a},
	}

	s := NewRankedStrategy()
	assert.Equal(t, "ranked", s.Name())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.SelectPlayer(context.Background(), &models.League{}, models.Captain{}, tt.available)
			require.NoError(t, err)
			assert.Equal(t, tt.want.ID, got.ID)
		})
	}

	_, err := s.SelectPlayer(context.Background(), &models.League{}, models.Captain{}, nil)
	assert.ErrorIs(t, err, ErrNoPlayers)
}

func TestRandomStrategy_SeededIsDeterministic(t *testing.T) {
	pool := make([]models.Player, 10)
	for i := range pool {
		pool[i] = models.Player{ID: uuid.New(), Rank: i + 1}
	}

	first := NewRandomStrategy(42)
	second := NewRandomStrategy(42)
	for i := 0; i < 5; i++ {
		x, err := first.SelectPlayer(context.Background(), &models.League{}, models.Captain{}, pool)
		require.NoError(t, err)
		y, err := second.SelectPlayer(context.Background(), &models.League{}, models.Captain{}, pool)
		require.NoError(t, err)
		assert.Equal(t, x.ID, y.ID)
		assert.Contains(t, pool, x)
	}

	_, err := first.SelectPlayer(context.Background(), &models.League{}, models.Captain{}, []models.Player{})
	assert.ErrorIs(t, err, ErrNoPlayers)
}

func TestNewStrategy(t *testing.T) {
	for name, want := range map[string]string{"": "ranked", "ranked": "ranked", "random": "random"} {
		s, err := NewStrategy(name, 7)
		require.NoError(t, err, name)
		assert.Equal(t, want, s.Name())
	}

	_, err := NewStrategy("psychic", 0)
	assert.Error(t, err)
}
