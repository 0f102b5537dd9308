package errors

import "errors"

// input validation
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidGameID    = errors.New("invalid game id")
	ErrInvalidBoardSize = errors.New("board size must be 9, 13, or 19")
	ErrUnknownEvent     = errors.New("unknown event")
)

// rule violations
var (
	ErrGameOver    = errors.New("game is over")
	ErrNotYourTurn = errors.New("not your turn")
	ErrOutOfBounds = errors.New("out of bounds")
	ErrOccupied    = errors.New("position occupied")
	ErrSuicide     = errors.New("suicide is not allowed")
	ErrKo          = errors.New("ko rule violation")
)

// capacity and availability
var (
	ErrRegistryFull    = errors.New("too many live games, try again later")
	ErrGameNotFound    = errors.New("game not found")
	ErrNotInGame       = errors.New("you are not in this game")
	ErrGameNotActive   = errors.New("game is not active")
	ErrTooManyGames    = errors.New("you have too many active games")
	ErrRateLimited     = errors.New("too many requests")
	ErrSessionNotFound = errors.New("session was not found")
)

// infrastructure
var (
	ErrInternal       = errors.New("internal error")
	ErrCorruptMoveLog = errors.New("stored move log does not replay")
)

type Kind int

const (
	KindInfrastructure Kind = iota
	KindInput
	KindRule
	KindAvailability
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindRule:
		return "rule"
	case KindAvailability:
		return "availability"
	}
	return "infrastructure"
}

var kinds = map[error]Kind{
	ErrInvalidInput:     KindInput,
	ErrInvalidGameID:    KindInput,
	ErrInvalidBoardSize: KindInput,
	ErrUnknownEvent:     KindInput,

	ErrGameOver:    KindRule,
	ErrNotYourTurn: KindRule,
	ErrOutOfBounds: KindRule,
	ErrOccupied:    KindRule,
	ErrSuicide:     KindRule,
	ErrKo:          KindRule,

	ErrRegistryFull:    KindAvailability,
	ErrGameNotFound:    KindAvailability,
	ErrNotInGame:       KindAvailability,
	ErrGameNotActive:   KindAvailability,
	ErrTooManyGames:    KindAvailability,
	ErrRateLimited:     KindAvailability,
	ErrSessionNotFound: KindAvailability,
}

// KindOf classifies err by the first known sentinel in its chain.
// Anything unrecognised is an infrastructure fault.
func KindOf(err error) Kind {
	for sentinel, kind := range kinds {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindInfrastructure
}

// PublicMessage is the only text a client ever sees for err.
func PublicMessage(err error) string {
	for sentinel := range kinds {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal server error"
}
