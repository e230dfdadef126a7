package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"papertrade/internal/money"
	"papertrade/types"
)

// Engine executes buy and sell orders as atomic units against a Store
// and serves the portfolio read models. One engine is shared by all
// concurrent callers; per-order state lives on the stack.
type Engine struct {
	store Store
	log   zerolog.Logger
}

func NewEngine(store Store, log zerolog.Logger) *Engine {
	return &Engine{store: store, log: log}
}

// Buy purchases shares of ticker for the portfolio. Sizing is either
// an explicit share count or a dollar amount from which the share
// count is derived at the current price.
func (e *Engine) Buy(ctx context.Context, userId, portfolioId int64, ticker string, size types.OrderSize) (types.OrderResult, error) {
	inst, shares, total, err := e.prepare(ctx, ticker, size)
	if err != nil {
		return types.OrderResult{}, err
	}

	var result types.OrderResult
	err = e.store.InOrderTx(ctx, func(tx OrderTx) error {
		if _, err := tx.Debit(ctx, portfolioId, total); err != nil {
			return err
		}
		if err := tx.AddShares(ctx, portfolioId, inst.Id, shares, total); err != nil {
			return err
		}
		txnId, err := tx.AppendTransaction(ctx, portfolioId, userId, inst.Id, types.TransactionBuy, total)
		if err != nil {
			return err
		}
		result = types.OrderResult{
			TransactionId: txnId,
			Ticker:        inst.Ticker,
			Kind:          types.TransactionBuy,
			Shares:        shares,
			Total:         total,
		}
		return nil
	})
	if err != nil {
		return types.OrderResult{}, err
	}
	e.logOrder(result, portfolioId)
	return result, nil
}

// Sell is the mirror of Buy: the holding is checked and decremented
// before the portfolio is credited, all in the same atomic unit.
func (e *Engine) Sell(ctx context.Context, userId, portfolioId int64, ticker string, size types.OrderSize) (types.OrderResult, error) {
	inst, shares, total, err := e.prepare(ctx, ticker, size)
	if err != nil {
		return types.OrderResult{}, err
	}

	var result types.OrderResult
	err = e.store.InOrderTx(ctx, func(tx OrderTx) error {
		if _, err := tx.RemoveShares(ctx, portfolioId, inst.Id, shares, total); err != nil {
			return err
		}
		if _, err := tx.Credit(ctx, portfolioId, total); err != nil {
			return err
		}
		txnId, err := tx.AppendTransaction(ctx, portfolioId, userId, inst.Id, types.TransactionSell, total)
		if err != nil {
			return err
		}
		result = types.OrderResult{
			TransactionId: txnId,
			Ticker:        inst.Ticker,
			Kind:          types.TransactionSell,
			Shares:        shares,
			Total:         total,
		}
		return nil
	})
	if err != nil {
		return types.OrderResult{}, err
	}
	e.logOrder(result, portfolioId)
	return result, nil
}

// prepare runs everything that happens before the atomic unit: input
// validation, instrument resolution, the single price snapshot, and
// quantity derivation. No mutation happens here, so any failure leaves
// the ledger untouched.
func (e *Engine) prepare(ctx context.Context, ticker string, size types.OrderSize) (types.Instrument, decimal.Decimal, decimal.Decimal, error) {
	if err := money.ValidateAmount(size.Amount); err != nil {
		return types.Instrument{}, decimal.Decimal{}, decimal.Decimal{}, err
	}
	inst, err := e.store.InstrumentByTicker(ctx, strings.ToUpper(ticker))
	if err != nil {
		return types.Instrument{}, decimal.Decimal{}, decimal.Decimal{}, err
	}
	price, err := e.store.CurrentPrice(ctx, inst.Id)
	if err != nil {
		return types.Instrument{}, decimal.Decimal{}, decimal.Decimal{}, err
	}
	shares, total, err := sizeOrder(price, size)
	if err != nil {
		return types.Instrument{}, decimal.Decimal{}, decimal.Decimal{}, err
	}
	return inst, shares, total, nil
}

// sizeOrder turns the sizing input into (shares, total). The total is
// always recomputed as price*shares after the share count is
// quantized, so the stored cost is never more precise than the stored
// share count allows.
func sizeOrder(price decimal.Decimal, size types.OrderSize) (decimal.Decimal, decimal.Decimal, error) {
	var shares decimal.Decimal
	switch size.Mode {
	case types.SizeByShares:
		shares = size.Amount
	case types.SizeByDollars:
		shares = money.Quantize(size.Amount.Div(price))
	default:
		return decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("sizing mode %q: %w", size.Mode, ErrInvalidQuantity)
	}
	if !shares.IsPositive() {
		// A dollar amount too small to buy 0.01 shares quantizes to
		// zero and is rejected rather than producing an empty order.
		return decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("order sizes to zero shares: %w", ErrInvalidQuantity)
	}
	total := money.Quantize(price.Mul(shares))
	return shares, total, nil
}

func (e *Engine) logOrder(r types.OrderResult, portfolioId int64) {
	e.log.Info().
		Int64("portfolio", portfolioId).
		Int64("transaction", r.TransactionId).
		Str("ticker", r.Ticker).
		Str("kind", string(r.Kind)).
		Str("shares", r.Shares.String()).
		Str("total", r.Total.String()).
		Msg("order committed")
}

// ResolveActivePortfolio maps an authenticated user to their selected
// portfolio. Selection itself is owned by the portfolio endpoints; the
// order path only consumes the resolved id.
func (e *Engine) ResolveActivePortfolio(ctx context.Context, userId int64) (int64, error) {
	return e.store.ActivePortfolio(ctx, userId)
}

// Holdings returns cash balance plus all positions for one portfolio.
func (e *Engine) Holdings(ctx context.Context, portfolioId int64) (types.PortfolioView, error) {
	return e.store.PortfolioView(ctx, portfolioId)
}

// Transactions lists a portfolio's history, most recent first.
func (e *Engine) Transactions(ctx context.Context, portfolioId int64) ([]types.Transaction, error) {
	return e.store.Transactions(ctx, portfolioId)
}

// TransactionsByUser groups the user's full history by portfolio for
// cross-portfolio summaries.
func (e *Engine) TransactionsByUser(ctx context.Context, userId int64) (map[int64][]types.Transaction, error) {
	return e.store.TransactionsByUser(ctx, userId)
}
