package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func wall(b *Board, x int, c Color) {
	for y := 0; y < b.Size(); y++ {
		b.Set(x, y, c)
	}
}

func TestScoreBoard(t *testing.T) {
	t.Run("empty board is all neutral", func(t *testing.T) {
		b := newTestBoard(t, 9)

		score := ScoreBoard(b, DefaultKomi)

		assert.Equal(t, 0.0, score.BlackScore)
		assert.Equal(t, 6.5, score.WhiteScore)
		assert.Equal(t, White, score.Winner)
		assert.Equal(t, "W+6.5", score.Result)
	})

	t.Run("territory bordered by one color", func(t *testing.T) {
		// Given: a single black wall splitting the board
		b := newTestBoard(t, 9)
		wall(b, 3, Black)

		// When
		score := ScoreBoard(b, 0)

		// Then: every empty point belongs to black
		assert.Equal(t, 81.0, score.BlackScore)
		assert.Equal(t, 0.0, score.WhiteScore)
		assert.Equal(t, "B+81", score.Result)
	})

	t.Run("dame between the walls counts for nobody", func(t *testing.T) {
		// Given: black wall at x=3, white wall at x=5, empty column between
		b := newTestBoard(t, 9)
		wall(b, 3, Black)
		wall(b, 5, White)

		score := ScoreBoard(b, DefaultKomi)

		// 9 stones + 27 territory each, komi decides
		assert.Equal(t, 36.0, score.BlackScore)
		assert.Equal(t, 42.5, score.WhiteScore)
		assert.Equal(t, "W+6.5", score.Result)
	})

	t.Run("equal scores are a draw", func(t *testing.T) {
		b := newTestBoard(t, 9)
		wall(b, 3, Black)
		wall(b, 5, White)

		score := ScoreBoard(b, 0)

		assert.Equal(t, Empty, score.Winner)
		assert.Equal(t, "Draw", score.Result)
	})

	t.Run("integer margin has no decimals", func(t *testing.T) {
		b := newTestBoard(t, 9)
		wall(b, 3, Black)
		wall(b, 5, White)
		b.Set(4, 4, Black)

		score := ScoreBoard(b, 0)

		assert.Equal(t, "B+1", score.Result)
	})

	t.Run("scoring is idempotent", func(t *testing.T) {
		b := newTestBoard(t, 13)
		wall(b, 6, White)
		b.Set(2, 2, Black)
		before := b.Fingerprint()

		first := ScoreBoard(b, DefaultKomi)
		second := ScoreBoard(b, DefaultKomi)

		assert.Equal(t, first, second)
		assert.Equal(t, before, b.Fingerprint())
	})
}
