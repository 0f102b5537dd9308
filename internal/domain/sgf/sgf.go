package sgf

// GameTree is one SGF tree: the main line plus any variations.
type GameTree struct {
	Nodes    []Node
	Children []*GameTree
}

// Node is a single SGF node. A property may carry several values, e.g. AB[aa][bb].
type Node struct {
	Properties map[string][]string
}

type SGF struct {
	Root *GameTree
}

// Coord encodes a board point the SGF way: column then row, 'a' based.
func Coord(x, y int) string {
	return string([]byte{byte('a' + x), byte('a' + y)})
}
