package game

import (
	"fmt"

	errs "goplay/internal/errors"
)

type Color uint8

const (
	Empty Color = iota
	Black
	White
)

// Opponent returns the other player's color. Empty has no opponent.
func (c Color) Opponent() Color {
	switch c {
	case Black:
		return White
	case White:
		return Black
	}
	return Empty
}

func (c Color) String() string {
	switch c {
	case Black:
		return "black"
	case White:
		return "white"
	}
	return "empty"
}

func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Color) UnmarshalText(text []byte) error {
	switch string(text) {
	case "black":
		*c = Black
	case "white":
		*c = White
	case "empty", "":
		*c = Empty
	default:
		return fmt.Errorf("unknown color %q", text)
	}
	return nil
}

// Letter is the SGF / result-string tag of the color ("B" or "W").
func (c Color) Letter() string {
	switch c {
	case Black:
		return "B"
	case White:
		return "W"
	}
	return ""
}

type Point struct {
	X int `json:"x" bson:"x"`
	Y int `json:"y" bson:"y"`
}

var ValidBoardSizes = []int{9, 13, 19}

func IsValidBoardSize(size int) bool {
	for _, s := range ValidBoardSizes {
		if s == size {
			return true
		}
	}
	return false
}

// Board is a fixed size grid of stones addressed by y*size+x.
type Board struct {
	size  int
	cells []Color
}

// Group is a maximal same-colored 4-connected set of stones with its distinct liberties.
type Group struct {
	Stones    []Point
	Liberties []Point
}

// Fingerprint identifies a board position exactly: two fingerprints are equal
// if and only if the cell contents are identical.
type Fingerprint string

func NewBoard(size int) (*Board, error) {
	if !IsValidBoardSize(size) {
		return nil, fmt.Errorf("%w: got %d", errs.ErrInvalidBoardSize, size)
	}
	return &Board{size: size, cells: make([]Color, size*size)}, nil
}

func (b *Board) Size() int {
	return b.size
}

func (b *Board) idx(x, y int) int {
	return y*b.size + x
}

func (b *Board) InBounds(x, y int) bool {
	return x >= 0 && x < b.size && y >= 0 && y < b.size
}

func (b *Board) Get(x, y int) Color {
	return b.cells[b.idx(x, y)]
}

func (b *Board) Set(x, y int, c Color) {
	b.cells[b.idx(x, y)] = c
}

func (b *Board) Remove(x, y int) {
	b.cells[b.idx(x, y)] = Empty
}

// Neighbors returns the up to four orthogonally adjacent points, clipped at the edges.
func (b *Board) Neighbors(x, y int) []Point {
	neighbors := make([]Point, 0, 4)
	if x > 0 {
		neighbors = append(neighbors, Point{X: x - 1, Y: y})
	}
	if x < b.size-1 {
		neighbors = append(neighbors, Point{X: x + 1, Y: y})
	}
	if y > 0 {
		neighbors = append(neighbors, Point{X: x, Y: y - 1})
	}
	if y < b.size-1 {
		neighbors = append(neighbors, Point{X: x, Y: y + 1})
	}
	return neighbors
}

// Group collects the stones connected to (x, y) breadth first together with
// their liberties. An empty point yields an empty group.
func (b *Board) Group(x, y int) Group {
	color := b.Get(x, y)
	if color == Empty {
		return Group{}
	}

	visited := make([]bool, len(b.cells))
	visited[b.idx(x, y)] = true
	queue := []Point{{X: x, Y: y}}
	var group Group

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		group.Stones = append(group.Stones, p)

		for _, n := range b.Neighbors(p.X, p.Y) {
			i := b.idx(n.X, n.Y)
			if visited[i] {
				continue
			}
			visited[i] = true

			switch b.cells[i] {
			case Empty:
				group.Liberties = append(group.Liberties, n)
			case color:
				queue = append(queue, n)
			}
		}
	}

	return group
}

// CaptureDeadGroups removes every opponent group adjacent to (x, y) that has
// no liberties left and returns the removed points. Each group is inspected once.
func (b *Board) CaptureDeadGroups(x, y int, color Color) []Point {
	opponent := color.Opponent()
	checked := make(map[Point]bool)
	var captured []Point

	for _, n := range b.Neighbors(x, y) {
		if checked[n] || b.Get(n.X, n.Y) != opponent {
			continue
		}

		group := b.Group(n.X, n.Y)
		for _, s := range group.Stones {
			checked[s] = true
		}

		if len(group.Liberties) == 0 {
			for _, s := range group.Stones {
				b.Remove(s.X, s.Y)
				captured = append(captured, s)
			}
		}
	}

	return captured
}

func (b *Board) Fingerprint() Fingerprint {
	raw := make([]byte, len(b.cells))
	for i, c := range b.cells {
		raw[i] = byte(c)
	}
	return Fingerprint(raw)
}

func (b *Board) Clone() *Board {
	cells := make([]Color, len(b.cells))
	copy(cells, b.cells)
	return &Board{size: b.size, cells: cells}
}

// Snapshot is the serializable form of a board: the flat cell array, row by row.
type Snapshot struct {
	Size int   `json:"size" bson:"size"`
	Grid []int `json:"grid" bson:"grid"`
}

func (b *Board) Snapshot() Snapshot {
	grid := make([]int, len(b.cells))
	for i, c := range b.cells {
		grid[i] = int(c)
	}
	return Snapshot{Size: b.size, Grid: grid}
}

func (b *Board) String() string {
	buf := make([]byte, 0, (b.size+1)*b.size)
	for y := 0; y < b.size; y++ {
		for x := 0; x < b.size; x++ {
			switch b.Get(x, y) {
			case Black:
				buf = append(buf, 'X')
			case White:
				buf = append(buf, 'O')
			default:
				buf = append(buf, '.')
			}
		}
		buf = append(buf, '\n')
	}
	return string(buf)
}
