package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrade/internal/ledger"
	"papertrade/types"
)

var errAppendBroken = errors.New("log append failed")

// failingAppendStore forwards to the real store but breaks the final
// transaction append, simulating a failure at the last step of the
// atomic unit.
type failingAppendStore struct {
	ledger.Store
}

func (s *failingAppendStore) InOrderTx(ctx context.Context, fn func(tx ledger.OrderTx) error) error {
	return s.Store.InOrderTx(ctx, func(tx ledger.OrderTx) error {
		return fn(&failingAppendTx{tx})
	})
}

type failingAppendTx struct {
	ledger.OrderTx
}

func (t *failingAppendTx) AppendTransaction(context.Context, int64, int64, int64, types.TransactionKind, decimal.Decimal) (int64, error) {
	return 0, errAppendBroken
}

// A failure anywhere inside the atomic unit must roll back everything
// already performed in it: the debit (buy) or the share removal and
// credit (sell) may not survive a failed log append.
func TestFailedAppendRollsBackWholeOrder(t *testing.T) {
	_, store, p, inst := newTestEngine(t)
	ctx := context.Background()

	engine := ledger.NewEngine(&failingAppendStore{Store: store}, zerolog.Nop())

	_, err := engine.Buy(ctx, testUser, p.Id, "AAPL", types.SizeShares(dec("10")))
	require.ErrorIs(t, err, errAppendBroken)

	assert.True(t, balance(t, store, p.Id).Equal(dec("10000.00")), "debit must be rolled back")
	_, ok := store.Holding(p.Id, inst.Id)
	assert.False(t, ok, "holding upsert must be rolled back")

	// Seed a position through the working engine, then fail a sell.
	working := ledger.NewEngine(store, zerolog.Nop())
	_, err = working.Buy(ctx, testUser, p.Id, "AAPL", types.SizeShares(dec("10")))
	require.NoError(t, err)

	_, err = engine.Sell(ctx, testUser, p.Id, "AAPL", types.SizeShares(dec("10")))
	require.ErrorIs(t, err, errAppendBroken)

	assert.True(t, balance(t, store, p.Id).Equal(dec("9000.00")), "credit must be rolled back")
	h, ok := store.Holding(p.Id, inst.Id)
	require.True(t, ok, "share removal must be rolled back")
	assert.True(t, h.Shares.Equal(dec("10")))

	txns, err := working.Transactions(ctx, p.Id)
	require.NoError(t, err)
	assert.Len(t, txns, 1, "only the successful seed buy is logged")
}
