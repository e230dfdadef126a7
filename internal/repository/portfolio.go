package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"papertrade/internal/ledger"
	"papertrade/types"
)

// CreatePortfolio inserts a portfolio with the schema's seed balance.
// The first portfolio a user creates also becomes their active one.
func (db *Database) CreatePortfolio(ctx context.Context, userId int64, name string) (types.Portfolio, error) {
	var p types.Portfolio
	err := pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO portfolios (user_id, name)
			 VALUES ($1, $2)
			 RETURNING id, user_id, name, cash_balance`,
			userId, name,
		).Scan(&p.Id, &p.UserId, &p.Name, &p.CashBalance)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return fmt.Errorf("portfolio %q: %w", name, ledger.ErrDuplicatePortfolio)
			}
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO active_portfolios (user_id, portfolio_id)
			 VALUES ($1, $2)
			 ON CONFLICT (user_id) DO NOTHING`,
			userId, p.Id,
		)
		return err
	})
	if err != nil {
		return types.Portfolio{}, err
	}
	return p, nil
}

func (db *Database) PortfolioByName(ctx context.Context, userId int64, name string) (types.Portfolio, error) {
	var p types.Portfolio
	err := db.pool.QueryRow(ctx,
		`SELECT id, user_id, name, cash_balance
		 FROM portfolios
		 WHERE user_id = $1 AND name = $2`,
		userId, name,
	).Scan(&p.Id, &p.UserId, &p.Name, &p.CashBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Portfolio{}, fmt.Errorf("portfolio %q: %w", name, ledger.ErrPortfolioNotFound)
		}
		return types.Portfolio{}, err
	}
	return p, nil
}

// Portfolios lists the user's portfolios with cash plus the cost value
// of all holdings rolled into a single value.
func (db *Database) Portfolios(ctx context.Context, userId int64) ([]types.PortfolioSummary, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT p.id, p.name, p.cash_balance,
		        p.cash_balance + COALESCE(SUM(h.cost_value), 0) AS value
		 FROM portfolios p
		 LEFT JOIN holdings h ON h.portfolio_id = p.id
		 WHERE p.user_id = $1
		 GROUP BY p.id, p.name, p.cash_balance
		 ORDER BY p.id`,
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.PortfolioSummary
	for rows.Next() {
		var s types.PortfolioSummary
		if err := rows.Scan(&s.Id, &s.Name, &s.CashBalance, &s.Value); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (db *Database) ActivePortfolio(ctx context.Context, userId int64) (int64, error) {
	var portfolioId int64
	err := db.pool.QueryRow(ctx,
		`SELECT portfolio_id FROM active_portfolios WHERE user_id = $1`,
		userId,
	).Scan(&portfolioId)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("user %d: %w", userId, ledger.ErrNoActivePortfolio)
		}
		return 0, err
	}
	return portfolioId, nil
}

func (db *Database) SetActivePortfolio(ctx context.Context, userId, portfolioId int64) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO active_portfolios (user_id, portfolio_id)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET portfolio_id = EXCLUDED.portfolio_id`,
		userId, portfolioId,
	)
	return err
}

// ResetUser deletes the user's holdings, selection and portfolios in
// one transaction. Transaction log rows survive; the FK detaches them.
func (db *Database) ResetUser(ctx context.Context, userId int64) error {
	return pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM holdings
			 WHERE portfolio_id IN (SELECT id FROM portfolios WHERE user_id = $1)`,
			userId,
		); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM active_portfolios WHERE user_id = $1`, userId,
		); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM portfolios WHERE user_id = $1`, userId)
		return err
	})
}

// PortfolioView is the holdings read model: cash, every position with
// its ticker, and the combined portfolio value.
func (db *Database) PortfolioView(ctx context.Context, portfolioId int64) (types.PortfolioView, error) {
	view := types.PortfolioView{PortfolioId: portfolioId}

	err := db.pool.QueryRow(ctx,
		`SELECT p.cash_balance,
		        p.cash_balance + COALESCE(SUM(h.cost_value), 0) AS value
		 FROM portfolios p
		 LEFT JOIN holdings h ON h.portfolio_id = p.id
		 WHERE p.id = $1
		 GROUP BY p.id, p.cash_balance`,
		portfolioId,
	).Scan(&view.CashBalance, &view.Value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.PortfolioView{}, fmt.Errorf("portfolio %d: %w", portfolioId, ledger.ErrPortfolioNotFound)
		}
		return types.PortfolioView{}, err
	}

	rows, err := db.pool.Query(ctx,
		`SELECT h.instrument_id, i.ticker, h.shares, h.cost_value
		 FROM holdings h
		 JOIN instruments i ON i.id = h.instrument_id
		 WHERE h.portfolio_id = $1
		 ORDER BY i.ticker`,
		portfolioId,
	)
	if err != nil {
		return types.PortfolioView{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var h types.HoldingView
		if err := rows.Scan(&h.InstrumentId, &h.Ticker, &h.Shares, &h.Value); err != nil {
			return types.PortfolioView{}, err
		}
		view.Holdings = append(view.Holdings, h)
	}
	return view, rows.Err()
}
