package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"papertrade/types"
)

// Store is everything the engine needs from durable storage. Both the
// Postgres repository and the in-memory store implement it.
type Store interface {
	// Instruments and prices. CurrentPrice is a snapshot read taken
	// once per order and is never locked against the price updater.
	InstrumentByTicker(ctx context.Context, ticker string) (types.Instrument, error)
	CurrentPrice(ctx context.Context, instrumentId int64) (decimal.Decimal, error)
	ListPrices(ctx context.Context) ([]types.PriceQuote, error)

	// Portfolio management.
	CreatePortfolio(ctx context.Context, userId int64, name string) (types.Portfolio, error)
	PortfolioByName(ctx context.Context, userId int64, name string) (types.Portfolio, error)
	Portfolios(ctx context.Context, userId int64) ([]types.PortfolioSummary, error)
	ActivePortfolio(ctx context.Context, userId int64) (int64, error)
	SetActivePortfolio(ctx context.Context, userId, portfolioId int64) error
	ResetUser(ctx context.Context, userId int64) error

	// Read models.
	PortfolioView(ctx context.Context, portfolioId int64) (types.PortfolioView, error)
	Transactions(ctx context.Context, portfolioId int64) ([]types.Transaction, error)
	TransactionsByUser(ctx context.Context, userId int64) (map[int64][]types.Transaction, error)

	// InOrderTx runs fn as one atomic unit: every mutation fn performs
	// commits together or not at all. The store retries fn a bounded
	// number of times on transient conflicts before returning
	// ErrConcurrentConflict, so fn must be safe to re-run.
	InOrderTx(ctx context.Context, fn func(tx OrderTx) error) error
}

// OrderTx is the mutation surface available inside an atomic unit.
// Every check-then-act below is serializable: the read that feeds the
// check holds row exclusivity through the mutation.
type OrderTx interface {
	// Debit fails with ErrInsufficientFunds when amount exceeds the
	// current balance.
	Debit(ctx context.Context, portfolioId int64, amount decimal.Decimal) (decimal.Decimal, error)
	Credit(ctx context.Context, portfolioId int64, amount decimal.Decimal) (decimal.Decimal, error)

	// AddShares upserts the (portfolio, instrument) holding,
	// accumulating shares and cost.
	AddShares(ctx context.Context, portfolioId, instrumentId int64, shares, cost decimal.Decimal) error
	// RemoveShares fails with ErrInsufficientShares when shares exceeds
	// the current position. When the remainder falls to the purge
	// epsilon or below, the row is deleted and zero is returned.
	RemoveShares(ctx context.Context, portfolioId, instrumentId int64, shares, proceeds decimal.Decimal) (decimal.Decimal, error)

	// AppendTransaction assigns the next transaction id. Called only
	// from inside an atomic unit; rows are never touched again.
	AppendTransaction(ctx context.Context, portfolioId, userId, instrumentId int64, kind types.TransactionKind, change decimal.Decimal) (int64, error)
}
