package game

import (
	"math"
	"strconv"
)

// Score is the outcome of area scoring. Winner is Empty on a draw.
type Score struct {
	BlackScore float64 `json:"black_score"`
	WhiteScore float64 `json:"white_score"`
	Winner     Color   `json:"winner"`
	Result     string  `json:"result"`
}

// ScoreBoard applies Chinese area scoring: stones on the board plus empty
// regions bordered by a single color. Komi is added to White.
func ScoreBoard(b *Board, komi float64) Score {
	var blackStones, whiteStones, blackTerritory, whiteTerritory int

	for _, c := range b.cells {
		switch c {
		case Black:
			blackStones++
		case White:
			whiteStones++
		}
	}

	visited := make([]bool, len(b.cells))
	for y := 0; y < b.size; y++ {
		for x := 0; x < b.size; x++ {
			start := b.idx(x, y)
			if b.cells[start] != Empty || visited[start] {
				continue
			}

			region, borders := b.emptyRegion(x, y, visited)
			// dame and stoneless regions count for nobody
			if len(borders) != 1 {
				continue
			}
			if borders[Black] {
				blackTerritory += region
			} else {
				whiteTerritory += region
			}
		}
	}

	score := Score{
		BlackScore: float64(blackStones + blackTerritory),
		WhiteScore: float64(whiteStones+whiteTerritory) + komi,
	}

	diff := score.BlackScore - score.WhiteScore
	switch {
	case diff > 0:
		score.Winner = Black
	case diff < 0:
		score.Winner = White
	}

	if score.Winner == Empty {
		score.Result = "Draw"
	} else {
		score.Result = score.Winner.Letter() + "+" + strconv.FormatFloat(math.Abs(diff), 'f', -1, 64)
	}

	return score
}

// emptyRegion flood fills the empty region containing (x, y), marking it in
// visited, and returns its size and the set of colors touching it.
func (b *Board) emptyRegion(x, y int, visited []bool) (int, map[Color]bool) {
	borders := make(map[Color]bool, 2)
	visited[b.idx(x, y)] = true
	queue := []Point{{X: x, Y: y}}
	size := 0

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		size++

		for _, n := range b.Neighbors(p.X, p.Y) {
			i := b.idx(n.X, n.Y)
			if c := b.cells[i]; c != Empty {
				borders[c] = true
				continue
			}
			if !visited[i] {
				visited[i] = true
				queue = append(queue, n)
			}
		}
	}

	return size, borders
}
