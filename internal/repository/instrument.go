package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"papertrade/internal/ledger"
	"papertrade/types"
)

func (db *Database) InstrumentByTicker(ctx context.Context, ticker string) (types.Instrument, error) {
	var inst types.Instrument
	err := db.pool.QueryRow(ctx,
		`SELECT id, ticker, name FROM instruments WHERE ticker = $1`,
		ticker,
	).Scan(&inst.Id, &inst.Ticker, &inst.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Instrument{}, fmt.Errorf("ticker %s: %w", ticker, ledger.ErrInstrumentNotFound)
		}
		return types.Instrument{}, err
	}
	return inst, nil
}

// CurrentPrice is a plain snapshot read. No lock is taken, so the
// background price updater is never blocked by order processing.
func (db *Database) CurrentPrice(ctx context.Context, instrumentId int64) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := db.pool.QueryRow(ctx,
		`SELECT price FROM prices WHERE instrument_id = $1`,
		instrumentId,
	).Scan(&price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Decimal{}, fmt.Errorf("instrument %d: %w", instrumentId, ledger.ErrPriceUnavailable)
		}
		return decimal.Decimal{}, err
	}
	return price, nil
}

func (db *Database) ListPrices(ctx context.Context) ([]types.PriceQuote, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT i.id, i.ticker, i.name, p.price
		 FROM prices p
		 JOIN instruments i ON i.id = p.instrument_id
		 ORDER BY i.ticker`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quotes []types.PriceQuote
	for rows.Next() {
		var q types.PriceQuote
		if err := rows.Scan(&q.InstrumentId, &q.Ticker, &q.Name, &q.Price); err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}
