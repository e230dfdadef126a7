package ledger

import (
	"errors"

	"papertrade/internal/money"
)

// Order validation reuses the money package sentinel so callers can
// match either way.
var ErrInvalidQuantity = money.ErrInvalidQuantity

var (
	ErrInstrumentNotFound = errors.New("instrument not found")
	ErrPriceUnavailable   = errors.New("no price available for instrument")
	ErrNoActivePortfolio  = errors.New("no active portfolio selected")
	ErrInsufficientFunds  = errors.New("insufficient buying power")
	ErrInsufficientShares = errors.New("not enough shares to sell")
	ErrPortfolioNotFound  = errors.New("portfolio not found")
	ErrDuplicatePortfolio = errors.New("portfolio name already in use")
	// ErrConcurrentConflict surfaces only after the store has exhausted
	// its internal retries on lock/version conflicts.
	ErrConcurrentConflict = errors.New("order aborted after concurrent update conflict")
)
