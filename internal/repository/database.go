// Package repository is the Postgres store behind the ledger. All
// check-then-mutate sequences run inside a single transaction with the
// affected rows locked FOR UPDATE, and transient conflicts are retried
// a bounded number of times.
package repository

import (
	"context"
	"errors"
	"fmt"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"papertrade/internal/ledger"
)

// maxTxAttempts bounds the internal retry on serialization failures
// and deadlocks before the order fails with ErrConcurrentConflict.
const maxTxAttempts = 3

type Database struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewDatabase creates a pooled connection with shopspring decimal
// codecs registered and verifies connectivity.
func NewDatabase(ctx context.Context, dbURL string, log zerolog.Logger) (*Database, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// Register shopspring decimal
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Database{pool: pool, log: log}, nil
}

func (db *Database) Close() {
	db.pool.Close()
}

// InOrderTx runs fn inside one database transaction. A buy locks the
// portfolio row before the holding row and a sell the reverse, so two
// opposing orders on the same position can deadlock; Postgres aborts
// one and it is retried here.
func (db *Database) InOrderTx(ctx context.Context, fn func(tx ledger.OrderTx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = pgx.BeginTxFunc(ctx, db.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
			return fn(&orderTx{tx: tx})
		})
		if !retryable(err) {
			return err
		}
		db.log.Warn().Int("attempt", attempt).Err(err).Msg("order transaction conflict, retrying")
	}
	return fmt.Errorf("%v: %w", err, ledger.ErrConcurrentConflict)
}

// retryable reports whether err is a transient conflict: a
// serialization failure (40001) or a deadlock abort (40P01).
func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
