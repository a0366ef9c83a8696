package pick

import (
	"testing"

	"github.com/google/uuid"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequence(t *testing.T, o Order, names map[uuid.UUID]string) []string {
	t.Helper()
	out := make([]string, 0, o.TotalPicks())
	for i := 0; i < o.TotalPicks(); i++ {
		id, err := o.CaptainAt(i)
		require.NoError(t, err)
		out = append(out, names[id])
	}
	return out
}

func TestOrder_CaptainAt(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	names := map[uuid.UUID]string{a: "A", b: "B", c: "C"}

	tests := []struct {
		name  string
		order Order
		want  []string
	}{
		{
			name:  "linear repeats the same order every round",
			order: Order{Type: models.DraftOrderLinear, Captains: []uuid.UUID{a, b, c}, Rounds: 3},
			want:  []string{"A", "B", "C", "A", "B", "C", "A", "B", "C"},
		},
		{
			name:  "snake reverses even rounds",
			order: Order{Type: models.DraftOrderSnake, Captains: []uuid.UUID{a, b, c}, Rounds: 4},
			want:  []string{"A", "B", "C", "C", "B", "A", "A", "B", "C", "C", "B", "A"},
		},
		{
			name:  "third round reversal runs rounds two and three backwards",
			order: Order{Type: models.DraftOrderSnake, Captains: []uuid.UUID{a, b, c}, Rounds: 5, ThirdRoundReversal: true},
			want: []string{
				"A", "B", "C",
				"C", "B", "A",
				"C", "B", "A",
				"A", "B", "C",
				"C", "B", "A",
			},
		},
		{
			name:  "third round reversal is ignored for linear drafts",
			order: Order{Type: models.DraftOrderLinear, Captains: []uuid.UUID{a, b, c}, Rounds: 3, ThirdRoundReversal: true},
			want:  []string{"A", "B", "C", "A", "B", "C", "A", "B", "C"},
		},
		{
			name:  "single captain",
			order: Order{Type: models.DraftOrderSnake, Captains: []uuid.UUID{a}, Rounds: 3},
			want:  []string{"A", "A", "A"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sequence(t, tt.order, names))
		})
	}
}

func TestOrder_OutOfRange(t *testing.T) {
	o := Order{Type: models.DraftOrderLinear, Captains: []uuid.UUID{uuid.New(), uuid.New()}, Rounds: 2}

	for _, index := range []int{-1, 4, 100} {
		_, err := o.CaptainAt(index)
		assert.ErrorIs(t, err, ErrPickOutOfRange, "index %d", index)
	}

	empty := Order{Type: models.DraftOrderLinear, Rounds: 3}
	_, err := empty.CaptainAt(0)
	assert.ErrorIs(t, err, ErrPickOutOfRange)
	assert.Equal(t, 0, empty.RoundOf(0))
}

func TestOrder_Positions(t *testing.T) {
	o := Order{Type: models.DraftOrderSnake, Captains: []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}, Rounds: 3}

	assert.Equal(t, 12, o.TotalPicks())
	assert.Equal(t, 1, o.RoundOf(0))
	assert.Equal(t, 1, o.RoundOf(3))
	assert.Equal(t, 2, o.RoundOf(4))
	assert.Equal(t, 3, o.RoundOf(11))
	assert.Equal(t, 1, o.PickInRound(4))
	assert.Equal(t, 4, o.PickInRound(11))
	assert.False(t, o.IsLast(10))
	assert.True(t, o.IsLast(11))
}

func TestOrderFor(t *testing.T) {
	captains := []uuid.UUID{uuid.New(), uuid.New()}
	league := &models.League{
		DraftOrderType:     models.DraftOrderSnake,
		ThirdRoundReversal: true,
		Rounds:             6,
		DraftOrder:         captains,
	}

	o := OrderFor(league)
	assert.Equal(t, models.DraftOrderSnake, o.Type)
	assert.True(t, o.ThirdRoundReversal)
	assert.Equal(t, 12, o.TotalPicks())
	assert.Equal(t, captains, o.Captains)
}
