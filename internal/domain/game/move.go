package game

import "time"

// Move is one entry of a session's in-memory history.
type Move struct {
	Number   int     `json:"move_number"`
	Color    Color   `json:"color"`
	Point    Point   `json:"point"`
	IsPass   bool    `json:"is_pass"`
	Captured []Point `json:"captured"`
}

// MoveRecord is the persisted form of a move, ordered by Number within a game.
type MoveRecord struct {
	GameID    int64     `json:"game_id" bson:"game_id"`
	Number    int       `json:"move_number" bson:"move_number"`
	PlayerID  string    `json:"player_id" bson:"player_id"`
	X         int       `json:"x" bson:"x"`
	Y         int       `json:"y" bson:"y"`
	IsPass    bool      `json:"is_pass" bson:"is_pass"`
	Captured  []Point   `json:"captured" bson:"captured"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
