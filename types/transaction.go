package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	TransactionBuy  TransactionKind = "buy"
	TransactionSell TransactionKind = "sell"
)

// Transaction is one immutable ledger entry. Change is always
// positive: cash spent for a buy, cash received for a sell.
type Transaction struct {
	Id           int64           `json:"id"`
	PortfolioId  int64           `json:"portfolioId"`
	UserId       int64           `json:"userId"`
	InstrumentId int64           `json:"instrumentId"`
	Kind         TransactionKind `json:"kind"`
	Change       decimal.Decimal `json:"change"`
	Timestamp    time.Time       `json:"timestamp"`
}
