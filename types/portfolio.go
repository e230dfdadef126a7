package types

import (
	"github.com/shopspring/decimal"
)

type Portfolio struct {
	Id          int64           `json:"id"`
	UserId      int64           `json:"userId"`
	Name        string          `json:"name"`
	CashBalance decimal.Decimal `json:"cashBalance"`
}

// PortfolioSummary is the list view: cash plus the cost value of all
// holdings rolled into a single portfolio value.
type PortfolioSummary struct {
	Id          int64           `json:"id"`
	Name        string          `json:"name"`
	CashBalance decimal.Decimal `json:"cashBalance"`
	Value       decimal.Decimal `json:"value"`
}

type PortfolioView struct {
	PortfolioId int64           `json:"portfolioId"`
	CashBalance decimal.Decimal `json:"cashBalance"`
	Value       decimal.Decimal `json:"value"`
	Holdings    []HoldingView   `json:"holdings"`
}

type HoldingView struct {
	InstrumentId int64           `json:"instrumentId"`
	Ticker       string          `json:"ticker"`
	Shares       decimal.Decimal `json:"shares"`
	Value        decimal.Decimal `json:"value"`
}
