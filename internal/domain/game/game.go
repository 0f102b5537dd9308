package game

import (
	"time"

	"goplay/internal/statuses"
)

const DefaultKomi = 6.5

// Game is the durable metadata of a match. Moves live in their own collection.
type Game struct {
	ID          int64      `json:"id" bson:"_id"`
	BoardSize   int        `json:"board_size" bson:"board_size"`
	Komi        float64    `json:"komi" bson:"komi"`
	PlayerBlack string     `json:"player_black" bson:"player_black"`
	PlayerWhite string     `json:"player_white,omitempty" bson:"player_white"`
	Status      string     `json:"status" bson:"status"`
	WinnerID    string     `json:"winner_id,omitempty" bson:"winner_id,omitempty"`
	Result      string     `json:"result,omitempty" bson:"result,omitempty"`
	FinalBoard  *Snapshot  `json:"final_board,omitempty" bson:"final_board,omitempty"`
	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty" bson:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty" bson:"finished_at,omitempty"`
}

// ColorOf reports which side userID plays in this game, Empty if none.
func (g Game) ColorOf(userID string) Color {
	switch {
	case userID == "":
		return Empty
	case g.PlayerBlack == userID:
		return Black
	case g.PlayerWhite == userID:
		return White
	}
	return Empty
}

func (g Game) PlayerOf(c Color) string {
	switch c {
	case Black:
		return g.PlayerBlack
	case White:
		return g.PlayerWhite
	}
	return ""
}

func (g Game) IsActive() bool {
	return g.Status == statuses.StatusActive
}

func (g Game) IsWaiting() bool {
	return g.Status == statuses.StatusWaitOpponent
}

func (g Game) IsFinished() bool {
	return g.Status == statuses.StatusFinished
}

type CreateGameRequest struct {
	BoardSize int      `json:"board_size" validate:"oneof=9 13 19"`
	Komi      *float64 `json:"komi,omitempty" validate:"omitempty,gte=0,lte=100"`
}

type GameCreateResponse struct {
	ID int64 `json:"id"`
}

type GameWithMoves struct {
	Game
	Moves []MoveRecord `json:"moves"`
}

// StatusUpdate carries everything written when a game changes status.
type StatusUpdate struct {
	Status     string
	WinnerID   string
	Result     string
	FinalBoard *Snapshot
}
