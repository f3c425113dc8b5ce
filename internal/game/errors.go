package game

import (
	"errors"

	"github.com/lox/fairjack/internal/deck"
)

// Precondition failures. Actions that return one of these leave every record
// untouched.
var (
	ErrInvalidGameID       = errors.New("invalid game id")
	ErrGameAlreadyFinished = errors.New("game already finished")
	ErrNotYourTurn         = errors.New("not your turn")
	ErrIllegalAction       = errors.New("illegal action")
	ErrHashMismatch        = errors.New("sequence does not match commitment")
	ErrGameNotFinished     = errors.New("game not finished")
	ErrSequenceExhausted   = deck.ErrSequenceExhausted
)

// ErrRecordNotFound is returned by Store implementations for unknown ids.
var ErrRecordNotFound = errors.New("record not found")

// Code returns a stable identifier for an engine error, suitable for wire
// protocols. Unknown errors map to "internal".
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidGameID):
		return "invalid_game_id"
	case errors.Is(err, ErrGameAlreadyFinished):
		return "game_already_finished"
	case errors.Is(err, ErrNotYourTurn):
		return "not_your_turn"
	case errors.Is(err, ErrIllegalAction):
		return "illegal_action"
	case errors.Is(err, ErrSequenceExhausted):
		return "sequence_exhausted"
	case errors.Is(err, ErrHashMismatch):
		return "hash_mismatch"
	case errors.Is(err, ErrGameNotFinished):
		return "game_not_finished"
	default:
		return "internal"
	}
}
