package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAmount is returned for non-positive amounts, or amounts above a
	// configured limit.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrDepositLimit is an ErrInvalidAmount for deposits above the maximum.
	ErrDepositLimit = fmt.Errorf("deposit limit exceeded: %w", ErrInvalidAmount)
	// ErrInsufficientFunds is returned when a debit would take the balance
	// below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")
)
