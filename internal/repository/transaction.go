package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"papertrade/types"
)

// Transactions lists one portfolio's history, most recent first.
func (db *Database) Transactions(ctx context.Context, portfolioId int64) ([]types.Transaction, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, portfolio_id, user_id, instrument_id, kind, change, created_at
		 FROM transactions
		 WHERE portfolio_id = $1
		 ORDER BY id DESC`,
		portfolioId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// TransactionsByUser returns the user's full history grouped by
// portfolio. Rows detached from a deleted portfolio are excluded, the
// same way the per-portfolio listing can no longer reach them.
func (db *Database) TransactionsByUser(ctx context.Context, userId int64) (map[int64][]types.Transaction, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, portfolio_id, user_id, instrument_id, kind, change, created_at
		 FROM transactions
		 WHERE user_id = $1 AND portfolio_id IS NOT NULL
		 ORDER BY id DESC`,
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txns, err := scanTransactions(rows)
	if err != nil {
		return nil, err
	}
	grouped := make(map[int64][]types.Transaction)
	for _, txn := range txns {
		grouped[txn.PortfolioId] = append(grouped[txn.PortfolioId], txn)
	}
	return grouped, nil
}

func scanTransactions(rows pgx.Rows) ([]types.Transaction, error) {
	var txns []types.Transaction
	for rows.Next() {
		var txn types.Transaction
		err := rows.Scan(&txn.Id, &txn.PortfolioId, &txn.UserId, &txn.InstrumentId, &txn.Kind, &txn.Change, &txn.Timestamp)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}
