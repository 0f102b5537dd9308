package game

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"goplay/internal/domain/game"
	errs "goplay/internal/errors"
)

const (
	EventJoinGame   = "join-game"
	EventPlaceStone = "place-stone"
	EventPass       = "pass"
	EventResign     = "resign"
)

// Request is one client frame. Coordinates are pointers so a missing value
// is told apart from zero.
type Request struct {
	Type   string `json:"type"`
	GameID int64  `json:"gameId" validate:"gt=0"`
	X      *int   `json:"x,omitempty" validate:"omitempty,min=0,max=18"`
	Y      *int   `json:"y,omitempty" validate:"omitempty,min=0,max=18"`
}

type ErrorMessage struct {
	Message string `json:"message"`
}

// ParseRequest decodes and validates a frame. Anything that is not a whole
// number in range is refused here, before the game is touched.
func ParseRequest(validate *validator.Validate, data []byte) (Request, error) {
	var req Request
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		return Request{}, fmt.Errorf("%w: %v", errs.ErrInvalidInput, err)
	}

	switch req.Type {
	case EventJoinGame, EventPlaceStone, EventPass, EventResign:
	default:
		return Request{}, fmt.Errorf("%w: %q", errs.ErrUnknownEvent, req.Type)
	}

	if err := validate.Struct(req); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) {
			for _, fe := range invalid {
				if fe.Field() == "GameID" {
					return Request{}, errs.ErrInvalidGameID
				}
			}
		}
		return Request{}, fmt.Errorf("%w: %v", errs.ErrInvalidInput, err)
	}

	if req.Type == EventPlaceStone && (req.X == nil || req.Y == nil) {
		return Request{}, fmt.Errorf("%w: coordinates are required", errs.ErrInvalidInput)
	}
	return req, nil
}

func errorEvent(gameID int64, err error) game.Event {
	return game.Event{
		Type:   game.EventError,
		GameID: gameID,
		Data:   ErrorMessage{Message: errs.PublicMessage(err)},
	}
}
