package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"papertrade/internal/ledger"
	"papertrade/internal/money"
	"papertrade/types"
)

// orderTx implements ledger.OrderTx on a live pgx transaction. Each
// check reads its row FOR UPDATE, so the lock is held from the check
// through the mutation to commit.
type orderTx struct {
	tx pgx.Tx
}

func (t *orderTx) Debit(ctx context.Context, portfolioId int64, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := t.tx.QueryRow(ctx,
		`SELECT cash_balance FROM portfolios WHERE id = $1 FOR UPDATE`,
		portfolioId,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Decimal{}, fmt.Errorf("portfolio %d: %w", portfolioId, ledger.ErrPortfolioNotFound)
		}
		return decimal.Decimal{}, err
	}
	if balance.LessThan(amount) {
		return decimal.Decimal{}, fmt.Errorf("balance %s, need %s: %w", balance, amount, ledger.ErrInsufficientFunds)
	}
	newBalance := balance.Sub(amount)
	_, err = t.tx.Exec(ctx,
		`UPDATE portfolios SET cash_balance = $1 WHERE id = $2`,
		newBalance, portfolioId,
	)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return newBalance, nil
}

func (t *orderTx) Credit(ctx context.Context, portfolioId int64, amount decimal.Decimal) (decimal.Decimal, error) {
	var newBalance decimal.Decimal
	err := t.tx.QueryRow(ctx,
		`UPDATE portfolios SET cash_balance = cash_balance + $1
		 WHERE id = $2
		 RETURNING cash_balance`,
		amount, portfolioId,
	).Scan(&newBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Decimal{}, fmt.Errorf("portfolio %d: %w", portfolioId, ledger.ErrPortfolioNotFound)
		}
		return decimal.Decimal{}, err
	}
	return newBalance, nil
}

func (t *orderTx) AddShares(ctx context.Context, portfolioId, instrumentId int64, shares, cost decimal.Decimal) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO holdings (portfolio_id, instrument_id, shares, cost_value)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (portfolio_id, instrument_id) DO UPDATE
		 SET shares = holdings.shares + EXCLUDED.shares,
		     cost_value = holdings.cost_value + EXCLUDED.cost_value`,
		portfolioId, instrumentId, shares, cost,
	)
	return err
}

func (t *orderTx) RemoveShares(ctx context.Context, portfolioId, instrumentId int64, shares, proceeds decimal.Decimal) (decimal.Decimal, error) {
	var owned, costValue decimal.Decimal
	err := t.tx.QueryRow(ctx,
		`SELECT shares, cost_value FROM holdings
		 WHERE portfolio_id = $1 AND instrument_id = $2
		 FOR UPDATE`,
		portfolioId, instrumentId,
	).Scan(&owned, &costValue)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Decimal{}, fmt.Errorf("no position held: %w", ledger.ErrInsufficientShares)
		}
		return decimal.Decimal{}, err
	}
	if owned.LessThan(shares) {
		return decimal.Decimal{}, fmt.Errorf("own %s, selling %s: %w", owned, shares, ledger.ErrInsufficientShares)
	}

	remaining := owned.Sub(shares)
	if money.BelowEpsilon(remaining) {
		_, err = t.tx.Exec(ctx,
			`DELETE FROM holdings WHERE portfolio_id = $1 AND instrument_id = $2`,
			portfolioId, instrumentId,
		)
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.Zero, nil
	}

	// Book value cannot go negative even when the sale proceeds exceed
	// what the remaining shares were bought for.
	newCost := costValue.Sub(proceeds)
	if newCost.IsNegative() {
		newCost = decimal.Zero
	}
	_, err = t.tx.Exec(ctx,
		`UPDATE holdings SET shares = $1, cost_value = $2
		 WHERE portfolio_id = $3 AND instrument_id = $4`,
		remaining, newCost, portfolioId, instrumentId,
	)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return remaining, nil
}

func (t *orderTx) AppendTransaction(ctx context.Context, portfolioId, userId, instrumentId int64, kind types.TransactionKind, change decimal.Decimal) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO transactions (portfolio_id, user_id, instrument_id, kind, change)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		portfolioId, userId, instrumentId, kind, change,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}
