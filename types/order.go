package types

import (
	"github.com/shopspring/decimal"
)

type SizingMode string

const (
	// SizeByShares places an order for an explicit share count.
	SizeByShares SizingMode = "SHARES"
	// SizeByDollars places an order for an explicit cash amount; the
	// share count is derived from the current price.
	SizeByDollars SizingMode = "DOLLARS"
)

// OrderSize is the single sizing input for both buy and sell.
type OrderSize struct {
	Mode   SizingMode
	Amount decimal.Decimal
}

func SizeShares(shares decimal.Decimal) OrderSize {
	return OrderSize{Mode: SizeByShares, Amount: shares}
}

func SizeDollars(dollars decimal.Decimal) OrderSize {
	return OrderSize{Mode: SizeByDollars, Amount: dollars}
}

// OrderResult is the caller-visible snapshot of a committed order.
type OrderResult struct {
	TransactionId int64           `json:"transactionId"`
	Ticker        string          `json:"ticker"`
	Kind          TransactionKind `json:"kind"`
	Shares        decimal.Decimal `json:"shares"`
	Total         decimal.Decimal `json:"total"`
}
