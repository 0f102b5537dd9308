package game

const (
	EventGameState    = "game-state"
	EventMoveMade     = "move-made"
	EventPlayerJoined = "player-joined"
	EventPlayerPassed = "player-passed"
	EventGameOver     = "game-over"
	EventError        = "error"
)

// Event is a state delta fanned out to every connection subscribed to a game.
type Event struct {
	Type   string `json:"type"`
	GameID int64  `json:"gameId"`
	Data   any    `json:"data,omitempty"`
}

type MoveMade struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Color      Color   `json:"color"`
	Captured   []Point `json:"captured"`
	MoveNumber int     `json:"moveNumber"`
}

type PlayerJoined struct {
	UserID string `json:"userId"`
	Color  Color  `json:"color"`
}

type PlayerPassed struct {
	Color Color `json:"color"`
}

type GameOver struct {
	Winner     Color    `json:"winner"`
	Result     string   `json:"result"`
	BlackScore *float64 `json:"blackScore,omitempty"`
	WhiteScore *float64 `json:"whiteScore,omitempty"`
}

type PlayerInfo struct {
	ID string `json:"id"`
}

// GameStateView is the full snapshot sent to a connection when it joins.
type GameStateView struct {
	State
	BlackPlayer PlayerInfo  `json:"blackPlayer"`
	WhitePlayer *PlayerInfo `json:"whitePlayer"`
	Status      string      `json:"status"`
}

func NewMoveMade(gameID int64, m Move) Event {
	return Event{
		Type:   EventMoveMade,
		GameID: gameID,
		Data: MoveMade{
			X:          m.Point.X,
			Y:          m.Point.Y,
			Color:      m.Color,
			Captured:   m.Captured,
			MoveNumber: m.Number,
		},
	}
}

func NewGameOver(gameID int64, o Outcome) Event {
	data := GameOver{Winner: o.Winner, Result: o.Result}
	if o.Score != nil {
		data.BlackScore = &o.Score.BlackScore
		data.WhiteScore = &o.Score.WhiteScore
	}
	return Event{Type: EventGameOver, GameID: gameID, Data: data}
}

func NewGameStateView(meta Game, s State) GameStateView {
	view := GameStateView{
		State:       s,
		BlackPlayer: PlayerInfo{ID: meta.PlayerBlack},
		Status:      meta.Status,
	}
	if meta.PlayerWhite != "" {
		view.WhitePlayer = &PlayerInfo{ID: meta.PlayerWhite}
	}
	return view
}
