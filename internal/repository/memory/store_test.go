package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"papertrade/internal/ledger"
	"papertrade/types"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedPortfolio(t *testing.T, store *Store) (types.Portfolio, types.Instrument) {
	t.Helper()
	inst := store.AddInstrument("AAPL", "Apple Inc.")
	store.SetPrice(inst.Id, dec("100.00"))
	p, err := store.CreatePortfolio(context.Background(), 1, "main")
	if err != nil {
		t.Fatalf("CreatePortfolio() error = %v", err)
	}
	return p, inst
}

func TestRemoveSharesEpsilonBoundary(t *testing.T) {
	tests := []struct {
		name        string
		held        string
		sell        string
		wantDeleted bool
		wantLeft    string
	}{
		{"should delete at exact zero", "10.00", "10.00", true, "0"},
		{"should delete at epsilon", "10.001", "10.00", true, "0"},
		{"should keep just above epsilon", "10.01", "10.00", false, "0.01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := New()
			p, inst := seedPortfolio(t, store)
			ctx := context.Background()

			err := store.InOrderTx(ctx, func(tx ledger.OrderTx) error {
				return tx.AddShares(ctx, p.Id, inst.Id, dec(tt.held), dec("1000.00"))
			})
			if err != nil {
				t.Fatalf("AddShares() error = %v", err)
			}

			var remaining decimal.Decimal
			err = store.InOrderTx(ctx, func(tx ledger.OrderTx) error {
				var err error
				remaining, err = tx.RemoveShares(ctx, p.Id, inst.Id, dec(tt.sell), dec("500.00"))
				return err
			})
			if err != nil {
				t.Fatalf("RemoveShares() error = %v", err)
			}

			_, ok := store.Holding(p.Id, inst.Id)
			if ok == tt.wantDeleted {
				t.Errorf("holding present = %v, wantDeleted %v", ok, tt.wantDeleted)
			}
			if !remaining.Equal(dec(tt.wantLeft)) {
				t.Errorf("remaining = %v, want %v", remaining, tt.wantLeft)
			}
		})
	}
}

func TestAddSharesAccumulates(t *testing.T) {
	store := New()
	p, inst := seedPortfolio(t, store)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		err := store.InOrderTx(ctx, func(tx ledger.OrderTx) error {
			return tx.AddShares(ctx, p.Id, inst.Id, dec("1.50"), dec("150.00"))
		})
		if err != nil {
			t.Fatalf("AddShares() error = %v", err)
		}
	}

	h, ok := store.Holding(p.Id, inst.Id)
	if !ok {
		t.Fatal("holding missing after upserts")
	}
	if !h.Shares.Equal(dec("3.00")) || !h.CostValue.Equal(dec("300.00")) {
		t.Errorf("holding = %v/%v, want 3.00/300.00", h.Shares, h.CostValue)
	}
}

func TestCostValueClampedAtZero(t *testing.T) {
	store := New()
	p, inst := seedPortfolio(t, store)
	ctx := context.Background()

	// Bought for 100, sold half for 150 after a price rise: remaining
	// book value clamps at zero instead of going negative.
	err := store.InOrderTx(ctx, func(tx ledger.OrderTx) error {
		if err := tx.AddShares(ctx, p.Id, inst.Id, dec("2.00"), dec("100.00")); err != nil {
			return err
		}
		_, err := tx.RemoveShares(ctx, p.Id, inst.Id, dec("1.00"), dec("150.00"))
		return err
	})
	if err != nil {
		t.Fatalf("InOrderTx() error = %v", err)
	}

	h, ok := store.Holding(p.Id, inst.Id)
	if !ok {
		t.Fatal("holding missing")
	}
	if !h.CostValue.Equal(decimal.Zero) {
		t.Errorf("cost value = %v, want 0", h.CostValue)
	}
}

func TestInOrderTxDiscardsStagedStateOnError(t *testing.T) {
	store := New()
	p, inst := seedPortfolio(t, store)
	ctx := context.Background()
	broken := errors.New("boom")

	err := store.InOrderTx(ctx, func(tx ledger.OrderTx) error {
		if _, err := tx.Debit(ctx, p.Id, dec("5000.00")); err != nil {
			return err
		}
		if err := tx.AddShares(ctx, p.Id, inst.Id, dec("50.00"), dec("5000.00")); err != nil {
			return err
		}
		if _, err := tx.AppendTransaction(ctx, p.Id, 1, inst.Id, types.TransactionBuy, dec("5000.00")); err != nil {
			return err
		}
		return broken
	})
	if !errors.Is(err, broken) {
		t.Fatalf("InOrderTx() error = %v, want %v", err, broken)
	}

	view, err := store.PortfolioView(ctx, p.Id)
	if err != nil {
		t.Fatalf("PortfolioView() error = %v", err)
	}
	if !view.CashBalance.Equal(dec("10000.00")) {
		t.Errorf("balance = %v, want untouched 10000.00", view.CashBalance)
	}
	if _, ok := store.Holding(p.Id, inst.Id); ok {
		t.Error("staged holding leaked into live state")
	}
	txns, _ := store.Transactions(ctx, p.Id)
	if len(txns) != 0 {
		t.Errorf("staged transaction leaked, got %d rows", len(txns))
	}
}

func TestTransactionIdsMonotonic(t *testing.T) {
	store := New()
	p, inst := seedPortfolio(t, store)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		err := store.InOrderTx(ctx, func(tx ledger.OrderTx) error {
			id, err := tx.AppendTransaction(ctx, p.Id, 1, inst.Id, types.TransactionBuy, dec("1.00"))
			ids = append(ids, id)
			return err
		})
		if err != nil {
			t.Fatalf("AppendTransaction() error = %v", err)
		}
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Errorf("ids not monotonic: %v", ids)
		}
	}
}

func TestResetUserDetachesHistory(t *testing.T) {
	store := New()
	p, inst := seedPortfolio(t, store)
	ctx := context.Background()

	err := store.InOrderTx(ctx, func(tx ledger.OrderTx) error {
		_, err := tx.AppendTransaction(ctx, p.Id, 1, inst.Id, types.TransactionBuy, dec("1.00"))
		return err
	})
	if err != nil {
		t.Fatalf("AppendTransaction() error = %v", err)
	}

	if err := store.ResetUser(ctx, 1); err != nil {
		t.Fatalf("ResetUser() error = %v", err)
	}

	if _, err := store.ActivePortfolio(ctx, 1); !errors.Is(err, ledger.ErrNoActivePortfolio) {
		t.Errorf("ActivePortfolio() error = %v, want ErrNoActivePortfolio", err)
	}
	grouped, err := store.TransactionsByUser(ctx, 1)
	if err != nil {
		t.Fatalf("TransactionsByUser() error = %v", err)
	}
	if len(grouped) != 0 {
		t.Errorf("detached history still grouped: %v", grouped)
	}
}
