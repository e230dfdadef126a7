// Package money holds the fixed-point rules shared by every cash and
// share quantity in the ledger: two decimal places, HALF_UP rounding,
// and the epsilon below which a holding is treated as empty.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrInvalidQuantity = errors.New("quantity must be positive with at most 2 decimal places")

// Scale is the number of fractional digits kept for every stored or
// compared cash and share value.
const Scale = 2

// ShareEpsilon is the share count at or below which a holding row is
// purged instead of being left near zero.
var ShareEpsilon = decimal.RequireFromString("0.001")

// ValidateAmount rejects order inputs before any I/O happens. Both
// share counts and dollar amounts must be strictly positive and carry
// no more than Scale fractional digits.
func ValidateAmount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return fmt.Errorf("%s: %w", d, ErrInvalidQuantity)
	}
	if d.Exponent() < -Scale && !d.Equal(d.Truncate(Scale)) {
		return fmt.Errorf("%s: %w", d, ErrInvalidQuantity)
	}
	return nil
}

// Quantize applies HALF_UP (round half away from zero) at Scale. Every
// multiply or divide that produces a value destined for storage or
// comparison goes through here, so buys and sells of the same nominal
// amount stay verifiable inverses up to one cent.
func Quantize(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// BelowEpsilon reports whether a share count should be treated as an
// empty position.
func BelowEpsilon(shares decimal.Decimal) bool {
	return shares.LessThanOrEqual(ShareEpsilon)
}
