package types

import (
	"github.com/shopspring/decimal"
)

// Holding is the aggregate position one portfolio has in one
// instrument. A row exists only while shares are above the purge
// epsilon; it is created on first buy and upserted on later buys.
type Holding struct {
	PortfolioId  int64           `json:"portfolioId"`
	InstrumentId int64           `json:"instrumentId"`
	Shares       decimal.Decimal `json:"shares"`
	CostValue    decimal.Decimal `json:"costValue"`
}
