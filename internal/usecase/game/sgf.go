package game

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"goplay/internal/domain/game"
	"goplay/internal/domain/sgf"
)

// rootOrder is the fixed order of root properties in serialized records.
var rootOrder = []string{"FF", "GM", "SZ", "PB", "PW", "DT", "RE", "KM", "RU", "B", "W"}

// PrepareSgfFile builds the root node of a game record.
func PrepareSgfFile(meta game.Game) sgf.SGF {
	return sgf.SGF{
		Root: &sgf.GameTree{
			Nodes: []sgf.Node{
				{
					Properties: map[string][]string{
						"FF": {"4"},
						"GM": {"1"},
						"SZ": {strconv.Itoa(meta.BoardSize)},
						"PB": {meta.PlayerBlack},
						"PW": {meta.PlayerWhite},
						"DT": {meta.CreatedAt.Format("2006-01-02")},
						"RE": {meta.Result},
						"KM": {strconv.FormatFloat(meta.Komi, 'f', -1, 64)},
						"RU": {"Chinese"},
					},
				},
			},
		},
	}
}

// AddMovesToSgf appends one node per stored move to the main line.
func AddMovesToSgf(tree *sgf.GameTree, meta game.Game, moves []game.MoveRecord) {
	for _, move := range moves {
		color := game.White
		if move.PlayerID == meta.PlayerBlack {
			color = game.Black
		}
		tree.Nodes = append(tree.Nodes, sgf.Node{
			Properties: map[string][]string{
				color.Letter(): {moveValue(move.IsPass, move.X, move.Y)},
			},
		})
	}
}

// BuildSGF renders the whole record of a game from its durable state.
func BuildSGF(meta game.Game, moves []game.MoveRecord) string {
	record := PrepareSgfFile(meta)
	AddMovesToSgf(record.Root, meta, moves)
	return SerializeSGF(&record)
}

func SerializeSGF(s *sgf.SGF) string {
	var builder strings.Builder
	builder.WriteString("(")
	serializeGameTree(&builder, s.Root)
	builder.WriteString(")")
	return builder.String()
}

func serializeGameTree(builder *strings.Builder, tree *sgf.GameTree) {
	for _, node := range tree.Nodes {
		builder.WriteString(";")

		used := make(map[string]bool, len(node.Properties))
		for _, key := range rootOrder {
			if values, ok := node.Properties[key]; ok {
				used[key] = true
				writeProperty(builder, key, values)
			}
		}

		rest := make([]string, 0)
		for key := range node.Properties {
			if !used[key] {
				rest = append(rest, key)
			}
		}
		sort.Strings(rest)
		for _, key := range rest {
			writeProperty(builder, key, node.Properties[key])
		}
	}

	for _, child := range tree.Children {
		builder.WriteString("(")
		serializeGameTree(builder, child)
		builder.WriteString(")")
	}
}

func writeProperty(builder *strings.Builder, key string, values []string) {
	builder.WriteString(key)
	for _, v := range values {
		builder.WriteString("[")
		builder.WriteString(escapeValue(v))
		builder.WriteString("]")
	}
}

func escapeValue(v string) string {
	return strings.NewReplacer(`\`, `\\`, "]", `\]`).Replace(v)
}

func moveValue(isPass bool, x, y int) string {
	if isPass {
		return ""
	}
	return sgf.Coord(x, y)
}

// AppendMoveToSgf adds a move node at the end of a serialized main line.
func AppendMoveToSgf(sgfText string, move game.Move) string {
	sgfText = strings.TrimSuffix(sgfText, ")")
	return sgfText + fmt.Sprintf(";%s[%s])", move.Color.Letter(), moveValue(move.IsPass, move.Point.X, move.Point.Y))
}

// SetSgfResult fills the RE property of a serialized record.
func SetSgfResult(sgfText, result string) string {
	return strings.Replace(sgfText, "RE[]", "RE["+escapeValue(result)+"]", 1)
}
