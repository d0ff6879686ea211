package ledger

import "errors"

// Ledger errors.
var (
	// ErrInsufficientCredits is returned when a debit would drive the
	// balance negative. The balance is left untouched.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrAlreadyApplied is returned when a credit's idempotency key has
	// been applied before. The balance is left untouched.
	ErrAlreadyApplied = errors.New("ledger entry already applied")

	// ErrAccountNotFound is returned when the account row does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
)
