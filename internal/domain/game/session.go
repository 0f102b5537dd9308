package game

import (
	"fmt"

	errs "goplay/internal/errors"
)

// Session is the authoritative state of one match. It is not safe for
// concurrent use; the registry serializes access to it.
type Session struct {
	board             *Board
	komi              float64
	currentPlayer     Color
	capturedByBlack   int
	capturedByWhite   int
	consecutivePasses int
	// position before the last successful stone, compared against for simple ko
	previousPosition Fingerprint
	hasPrevious      bool
	over             bool
	winner           Color
	result           string
	score            *Score
	history          []Move
}

type MoveResult struct {
	Move Move
}

type PassResult struct {
	Move     Move
	GameOver bool
	Score    *Score
}

type Outcome struct {
	Winner Color  `json:"winner"`
	Result string `json:"result"`
	Score  *Score `json:"score,omitempty"`
}

// State is a read-only view of a session for clients.
type State struct {
	Board           Snapshot `json:"board"`
	BoardSize       int      `json:"board_size"`
	Komi            float64  `json:"komi"`
	CurrentPlayer   Color    `json:"current_player"`
	CapturedByBlack int      `json:"captured_by_black"`
	CapturedByWhite int      `json:"captured_by_white"`
	MoveCount       int      `json:"move_count"`
	IsOver          bool     `json:"is_over"`
	Winner          Color    `json:"winner"`
	Result          string   `json:"result,omitempty"`
}

func NewSession(boardSize int, komi float64) (*Session, error) {
	board, err := NewBoard(boardSize)
	if err != nil {
		return nil, err
	}
	return &Session{
		board:         board,
		komi:          komi,
		currentPlayer: Black,
	}, nil
}

func (s *Session) CurrentPlayer() Color { return s.currentPlayer }
func (s *Session) IsOver() bool         { return s.over }
func (s *Session) Winner() Color        { return s.winner }
func (s *Session) Result() string       { return s.result }
func (s *Session) Komi() float64        { return s.komi }
func (s *Session) MoveCount() int       { return len(s.history) }
func (s *Session) ConsecutivePasses() int {
	return s.consecutivePasses
}

// Captures returns how many stones each color has taken.
func (s *Session) Captures() (byBlack, byWhite int) {
	return s.capturedByBlack, s.capturedByWhite
}

// Board returns a copy of the current position.
func (s *Session) Board() *Board {
	return s.board.Clone()
}

func (s *Session) History() []Move {
	history := make([]Move, len(s.history))
	copy(history, s.history)
	return history
}

// PlayMove places a stone for color at (x, y) after checking turn order,
// bounds, occupancy, suicide and simple ko.
func (s *Session) PlayMove(x, y int, color Color) (MoveResult, error) {
	if s.over {
		return MoveResult{}, errs.ErrGameOver
	}
	if color != s.currentPlayer {
		return MoveResult{}, errs.ErrNotYourTurn
	}
	if !s.board.InBounds(x, y) {
		return MoveResult{}, errs.ErrOutOfBounds
	}
	if s.board.Get(x, y) != Empty {
		return MoveResult{}, errs.ErrOccupied
	}

	before := s.board.Fingerprint()

	s.board.Set(x, y, color)
	captured := s.board.CaptureDeadGroups(x, y, color)

	if len(captured) == 0 {
		if group := s.board.Group(x, y); len(group.Liberties) == 0 {
			s.board.Remove(x, y)
			return MoveResult{}, errs.ErrSuicide
		}
	}

	if s.hasPrevious && s.board.Fingerprint() == s.previousPosition {
		s.board.Remove(x, y)
		opponent := color.Opponent()
		for _, c := range captured {
			s.board.Set(c.X, c.Y, opponent)
		}
		return MoveResult{}, errs.ErrKo
	}

	s.previousPosition = before
	s.hasPrevious = true

	if color == Black {
		s.capturedByBlack += len(captured)
	} else {
		s.capturedByWhite += len(captured)
	}

	if captured == nil {
		captured = []Point{}
	}
	move := Move{
		Number:   len(s.history) + 1,
		Color:    color,
		Point:    Point{X: x, Y: y},
		Captured: captured,
	}
	s.history = append(s.history, move)
	s.consecutivePasses = 0
	s.currentPlayer = color.Opponent()

	return MoveResult{Move: move}, nil
}

// Pass records a pass for color. The second consecutive pass ends the game
// and scores the board.
func (s *Session) Pass(color Color) (PassResult, error) {
	if s.over {
		return PassResult{}, errs.ErrGameOver
	}
	if color != s.currentPlayer {
		return PassResult{}, errs.ErrNotYourTurn
	}

	move := Move{
		Number:   len(s.history) + 1,
		Color:    color,
		IsPass:   true,
		Captured: []Point{},
	}
	s.history = append(s.history, move)
	s.consecutivePasses++
	s.currentPlayer = color.Opponent()

	if s.consecutivePasses < 2 {
		return PassResult{Move: move}, nil
	}

	score := ScoreBoard(s.board, s.komi)
	s.finish(score.Winner, score.Result)
	s.score = &score

	return PassResult{Move: move, GameOver: true, Score: &score}, nil
}

// Resign ends the game immediately in favour of the other color.
func (s *Session) Resign(color Color) (Outcome, error) {
	if s.over {
		return Outcome{}, errs.ErrGameOver
	}
	if color != Black && color != White {
		return Outcome{}, fmt.Errorf("%w: color %s cannot resign", errs.ErrInvalidInput, color)
	}

	winner := color.Opponent()
	s.finish(winner, winner.Letter()+"+Resign")

	return Outcome{Winner: winner, Result: s.result}, nil
}

// Outcome reports the result of a finished session.
func (s *Session) Outcome() Outcome {
	return Outcome{Winner: s.winner, Result: s.result, Score: s.score}
}

func (s *Session) finish(winner Color, result string) {
	s.over = true
	s.winner = winner
	s.result = result
}

func (s *Session) State() State {
	return State{
		Board:           s.board.Snapshot(),
		BoardSize:       s.board.Size(),
		Komi:            s.komi,
		CurrentPlayer:   s.currentPlayer,
		CapturedByBlack: s.capturedByBlack,
		CapturedByWhite: s.capturedByWhite,
		MoveCount:       len(s.history),
		IsOver:          s.over,
		Winner:          s.winner,
		Result:          s.result,
	}
}

// Clone returns an independent copy. Recorded moves are immutable and shared.
func (s *Session) Clone() *Session {
	clone := *s
	clone.board = s.board.Clone()
	clone.history = make([]Move, len(s.history), cap(s.history))
	copy(clone.history, s.history)
	if s.score != nil {
		score := *s.score
		clone.score = &score
	}
	return &clone
}

// Replay rebuilds a session from a stored move log. The author of each record
// decides its color: blackID plays Black, everyone else White.
func Replay(boardSize int, komi float64, records []MoveRecord, blackID string) (*Session, error) {
	s, err := NewSession(boardSize, komi)
	if err != nil {
		return nil, err
	}

	for _, rec := range records {
		color := White
		if rec.PlayerID == blackID {
			color = Black
		}

		if rec.IsPass {
			_, err = s.Pass(color)
		} else {
			_, err = s.PlayMove(rec.X, rec.Y, color)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: move %d: %v", errs.ErrCorruptMoveLog, rec.Number, err)
		}
	}

	return s, nil
}

// RestoreResignation marks a replayed session as finished by resignation,
// which leaves no record in the move log.
func (s *Session) RestoreResignation(winner Color, result string) {
	if s.over {
		return
	}
	s.finish(winner, result)
}
