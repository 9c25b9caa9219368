package app

import (
	"errors"

	"github.com/ychleo102615/hanahuda-server/internal/domain"
)

// Stable wire error codes.
const (
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeUnknownCommand    = "UNKNOWN_COMMAND"
	CodeGameNotFound      = "GAME_NOT_FOUND"
	CodeWrongPlayer       = "WRONG_PLAYER"
	CodeInvalidState      = "INVALID_STATE"
	CodeInvalidCard       = "INVALID_CARD"
	CodeInvalidTarget     = "INVALID_TARGET"
	CodeAlreadyInQueue    = "ALREADY_IN_QUEUE"
	CodeAlreadyInGame     = "ALREADY_IN_GAME"
	CodeInvalidRoomType   = "INVALID_ROOM_TYPE"
	CodePlayerNotFound    = "PLAYER_NOT_FOUND"
	CodeMatchmakingError  = "MATCHMAKING_ERROR"
	CodeUnknownError      = "UNKNOWN_ERROR"
)

// CodeForError maps domain and app sentinels to wire codes.
func CodeForError(err error) string {
	switch {
	case errors.Is(err, ErrGameNotFound):
		return CodeGameNotFound
	case errors.Is(err, domain.ErrWrongPlayer), errors.Is(err, domain.ErrNotInGame):
		return CodeWrongPlayer
	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrCannotContinue),
		errors.Is(err, domain.ErrTargetRequired):
		return CodeInvalidState
	case errors.Is(err, domain.ErrInvalidCard):
		return CodeInvalidCard
	case errors.Is(err, domain.ErrInvalidTarget):
		return CodeInvalidTarget
	case errors.Is(err, ErrAlreadyInQueue):
		return CodeAlreadyInQueue
	case errors.Is(err, ErrAlreadyInGame):
		return CodeAlreadyInGame
	case errors.Is(err, ErrNotInQueue), errors.Is(err, ErrEntryNotFound):
		return CodeMatchmakingError
	case errors.Is(err, ErrSessionInvalid):
		return CodePlayerNotFound
	default:
		return CodeUnknownError
	}
}
