package game

import "errors"

var (
	// ErrInvalidGameState is returned for an action attempted outside the
	// phase it is valid in.
	ErrInvalidGameState = errors.New("invalid game state")
	ErrInvalidChoice    = errors.New("invalid choice")
	ErrUnknownAction    = errors.New("unknown action")
	// ErrDeckExhausted is returned when fewer than two cards remain.
	ErrDeckExhausted = errors.New("deck exhausted")
)
