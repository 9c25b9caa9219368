package domain

import "errors"

var (
	ErrInvalidState      = errors.New("operation not allowed in current flow state")
	ErrWrongPlayer       = errors.New("player is not the active player")
	ErrNotInGame         = errors.New("player is not part of this game")
	ErrInvalidCard       = errors.New("card is not in the player's hand")
	ErrInvalidTarget     = errors.New("target is not a matchable field card")
	ErrTargetRequired    = errors.New("multiple matches require an explicit target")
	ErrCannotContinue    = errors.New("koi-koi requires cards left in hand")
	ErrInvalidTransition = errors.New("invalid game status transition")
	ErrGameFull          = errors.New("game already has two players")
	ErrDeckExhausted     = errors.New("deck is exhausted")
)
