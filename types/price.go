package types

import (
	"github.com/shopspring/decimal"
)

// PriceQuote pairs an instrument with its current price. The price
// row is owned by the background updater; the ledger only reads it.
type PriceQuote struct {
	InstrumentId int64           `json:"instrumentId"`
	Ticker       string          `json:"ticker"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
}
