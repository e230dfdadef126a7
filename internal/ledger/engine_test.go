package ledger_test

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrade/internal/ledger"
	"papertrade/internal/repository/memory"
	"papertrade/types"
)

const testUser int64 = 1

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// newTestEngine returns an engine over a memory store seeded with one
// portfolio and AAPL quoted at $100.00.
func newTestEngine(t *testing.T) (*ledger.Engine, *memory.Store, types.Portfolio, types.Instrument) {
	t.Helper()
	store := memory.New()
	inst := store.AddInstrument("AAPL", "Apple Inc.")
	store.SetPrice(inst.Id, dec("100.00"))
	p, err := store.CreatePortfolio(context.Background(), testUser, "main")
	require.NoError(t, err)
	return ledger.NewEngine(store, zerolog.Nop()), store, p, inst
}

func balance(t *testing.T, store *memory.Store, portfolioId int64) decimal.Decimal {
	t.Helper()
	view, err := store.PortfolioView(context.Background(), portfolioId)
	require.NoError(t, err)
	return view.CashBalance
}

func TestBuyByShares(t *testing.T) {
	engine, store, p, inst := newTestEngine(t)
	ctx := context.Background()

	result, err := engine.Buy(ctx, testUser, p.Id, "AAPL", types.SizeShares(dec("10")))
	require.NoError(t, err)

	assert.Equal(t, "AAPL", result.Ticker)
	assert.True(t, result.Shares.Equal(dec("10")), "shares = %s", result.Shares)
	assert.True(t, result.Total.Equal(dec("1000.00")), "total = %s", result.Total)

	// resulting_balance = prior_balance - total_cost, exactly.
	assert.True(t, balance(t, store, p.Id).Equal(dec("9000.00")))

	h, ok := store.Holding(p.Id, inst.Id)
	require.True(t, ok)
	assert.True(t, h.Shares.Equal(dec("10")))
	assert.True(t, h.CostValue.Equal(dec("1000.00")))

	txns, err := engine.Transactions(ctx, p.Id)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, types.TransactionBuy, txns[0].Kind)
	assert.True(t, txns[0].Change.Equal(result.Total))
	assert.Equal(t, result.TransactionId, txns[0].Id)
}

func TestBuyByDollarsRounding(t *testing.T) {
	engine, store, p, inst := newTestEngine(t)
	store.SetPrice(inst.Id, dec("3.00"))
	ctx := context.Background()

	// $10.00 at $3.00 buys 3.33 shares for $9.99, never $10.00.
	result, err := engine.Buy(ctx, testUser, p.Id, "AAPL", types.SizeDollars(dec("10.00")))
	require.NoError(t, err)
	assert.True(t, result.Shares.Equal(dec("3.33")), "shares = %s", result.Shares)
	assert.True(t, result.Total.Equal(dec("9.99")), "total = %s", result.Total)
	assert.True(t, balance(t, store, p.Id).Equal(dec("9990.01")))
}

func TestBuySellRoundTrip(t *testing.T) {
	engine, store, p, inst := newTestEngine(t)
	ctx := context.Background()

	bought, err := engine.Buy(ctx, testUser, p.Id, "AAPL", types.SizeDollars(dec("1000")))
	require.NoError(t, err)
	assert.True(t, bought.Shares.Equal(dec("10.00")))
	assert.True(t, bought.Total.Equal(dec("1000.00")))

	sold, err := engine.Sell(ctx, testUser, p.Id, "AAPL", types.SizeShares(dec("10.00")))
	require.NoError(t, err)
	assert.True(t, sold.Total.Equal(dec("1000.00")))

	// Cash is restored to the cent and the holding row is gone.
	assert.True(t, balance(t, store, p.Id).Equal(dec("10000.00")))
	_, ok := store.Holding(p.Id, inst.Id)
	assert.False(t, ok)
}

func TestBuyInsufficientFunds(t *testing.T) {
	engine, store, p, inst := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Buy(ctx, testUser, p.Id, "AAPL", types.SizeShares(dec("100.01")))
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	// Rejected orders leave everything untouched.
	assert.True(t, balance(t, store, p.Id).Equal(dec("10000.00")))
	_, ok := store.Holding(p.Id, inst.Id)
	assert.False(t, ok)
	txns, err := engine.Transactions(ctx, p.Id)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestSellInsufficientShares(t *testing.T) {
	engine, store, p, inst := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Buy(ctx, testUser, p.Id, "AAPL", types.SizeShares(dec("10")))
	require.NoError(t, err)
	before := balance(t, store, p.Id)

	// One cent of shares over the position is already too much.
	_, err = engine.Sell(ctx, testUser, p.Id, "AAPL", types.SizeShares(dec("10.01")))
	require.ErrorIs(t, err, ledger.ErrInsufficientShares)

	assert.True(t, balance(t, store, p.Id).Equal(before))
	h, ok := store.Holding(p.Id, inst.Id)
	require.True(t, ok)
	assert.True(t, h.Shares.Equal(dec("10")))

	// Selling with no position at all reports the same error.
	_, err = engine.Sell(ctx, testUser, p.Id, "AAPL", types.SizeShares(dec("10000")))
	require.ErrorIs(t, err, ledger.ErrInsufficientShares)
}

func TestSellFullPositionRemovesHolding(t *testing.T) {
	engine, store, p, inst := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Buy(ctx, testUser, p.Id, "AAPL", types.SizeShares(dec("2.50")))
	require.NoError(t, err)
	_, err = engine.Sell(ctx, testUser, p.Id, "AAPL", types.SizeShares(dec("2.50")))
	require.NoError(t, err)

	_, ok := store.Holding(p.Id, inst.Id)
	assert.False(t, ok)
}

func TestOrderValidationRejectsBeforeLookup(t *testing.T) {
	engine, _, p, _ := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		ticker string
		size   types.OrderSize
	}{
		{"zero shares", "AAPL", types.SizeShares(dec("0"))},
		{"negative shares", "AAPL", types.SizeShares(dec("-1"))},
		{"excess precision", "AAPL", types.SizeShares(dec("1.001"))},
		{"zero dollars", "AAPL", types.SizeDollars(dec("0"))},
		// Validation precedes resolution, so a bogus ticker with a bad
		// quantity still reports the quantity error.
		{"validation before ticker lookup", "NOPE", types.SizeShares(dec("-5"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Buy(ctx, testUser, p.Id, tt.ticker, tt.size)
			assert.ErrorIs(t, err, ledger.ErrInvalidQuantity)
			_, err = engine.Sell(ctx, testUser, p.Id, tt.ticker, tt.size)
			assert.ErrorIs(t, err, ledger.ErrInvalidQuantity)
		})
	}
}

func TestDollarOrderTooSmallForOneHundredthShare(t *testing.T) {
	engine, store, p, inst := newTestEngine(t)
	store.SetPrice(inst.Id, dec("10.00"))
	ctx := context.Background()

	// $0.01 at $10.00 quantizes to 0.00 shares.
	_, err := engine.Buy(ctx, testUser, p.Id, "AAPL", types.SizeDollars(dec("0.01")))
	assert.ErrorIs(t, err, ledger.ErrInvalidQuantity)
}

func TestUnknownInstrument(t *testing.T) {
	engine, _, p, _ := newTestEngine(t)
	_, err := engine.Buy(context.Background(), testUser, p.Id, "ZZZZ", types.SizeShares(dec("1")))
	assert.ErrorIs(t, err, ledger.ErrInstrumentNotFound)
}

func TestPriceUnavailable(t *testing.T) {
	engine, store, p, _ := newTestEngine(t)
	store.AddInstrument("NOQUOTE", "Unquoted Corp")

	_, err := engine.Buy(context.Background(), testUser, p.Id, "NOQUOTE", types.SizeShares(dec("1")))
	assert.ErrorIs(t, err, ledger.ErrPriceUnavailable)
}

func TestResolveActivePortfolio(t *testing.T) {
	engine, _, p, _ := newTestEngine(t)
	ctx := context.Background()

	id, err := engine.ResolveActivePortfolio(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, p.Id, id)

	_, err = engine.ResolveActivePortfolio(ctx, 42)
	assert.ErrorIs(t, err, ledger.ErrNoActivePortfolio)
}

func TestConcurrentSellsNeverOversell(t *testing.T) {
	engine, store, p, inst := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Buy(ctx, testUser, p.Id, "AAPL", types.SizeShares(dec("10.00")))
	require.NoError(t, err)

	// 5 concurrent sells of 2.00 shares each exactly drain the
	// position; none may observe a stale share count.
	const n = 5
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.Sell(ctx, testUser, p.Id, "AAPL", types.SizeShares(dec("2.00")))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "sell %d", i)
	}
	_, ok := store.Holding(p.Id, inst.Id)
	assert.False(t, ok, "position should be fully drained")
	assert.True(t, balance(t, store, p.Id).Equal(dec("10000.00")))
}

func TestConcurrentOverSellsFailCleanly(t *testing.T) {
	engine, store, p, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Buy(ctx, testUser, p.Id, "AAPL", types.SizeShares(dec("10.00")))
	require.NoError(t, err)

	// Each sale wants 6.00 of 10.00 shares; only one can win.
	const n = 4
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = engine.Sell(ctx, testUser, p.Id, "AAPL", types.SizeShares(dec("6.00")))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ledger.ErrInsufficientShares)
		}
	}
	assert.Equal(t, 1, succeeded)

	// 10.00 owned - 6.00 sold: cash reflects exactly one sale.
	assert.True(t, balance(t, store, p.Id).Equal(dec("9600.00")))
}

func TestConcurrentBuysNeverOverdraw(t *testing.T) {
	engine, store, p, _ := newTestEngine(t)
	ctx := context.Background()

	// Balance 10000.00; 7 concurrent buys of $3000.00 each. Exactly 3
	// fit; the rest must fail with no partial effect.
	const n = 7
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = engine.Buy(ctx, testUser, p.Id, "AAPL", types.SizeShares(dec("30.00")))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
		}
	}
	assert.Equal(t, 3, succeeded)
	assert.True(t, balance(t, store, p.Id).Equal(dec("1000.00")))
}

func TestTransactionsMostRecentFirst(t *testing.T) {
	engine, _, p, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Buy(ctx, testUser, p.Id, "AAPL", types.SizeShares(dec("1")))
	require.NoError(t, err)
	_, err = engine.Buy(ctx, testUser, p.Id, "AAPL", types.SizeShares(dec("2")))
	require.NoError(t, err)
	_, err = engine.Sell(ctx, testUser, p.Id, "AAPL", types.SizeShares(dec("3")))
	require.NoError(t, err)

	txns, err := engine.Transactions(ctx, p.Id)
	require.NoError(t, err)
	require.Len(t, txns, 3)
	assert.Equal(t, types.TransactionSell, txns[0].Kind)
	for i := 1; i < len(txns); i++ {
		assert.Greater(t, txns[i-1].Id, txns[i].Id)
	}
}

func TestTransactionsByUserGrouping(t *testing.T) {
	engine, store, p, _ := newTestEngine(t)
	ctx := context.Background()

	second, err := store.CreatePortfolio(ctx, testUser, "retirement")
	require.NoError(t, err)

	_, err = engine.Buy(ctx, testUser, p.Id, "AAPL", types.SizeShares(dec("1")))
	require.NoError(t, err)
	_, err = engine.Buy(ctx, testUser, second.Id, "AAPL", types.SizeShares(dec("2")))
	require.NoError(t, err)

	grouped, err := engine.TransactionsByUser(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, grouped, 2)
	assert.Len(t, grouped[p.Id], 1)
	assert.Len(t, grouped[second.Id], 1)
}

func TestPortfolioManagement(t *testing.T) {
	engine, _, p, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.CreatePortfolio(ctx, testUser, "main")
	assert.ErrorIs(t, err, ledger.ErrDuplicatePortfolio)

	second, err := engine.CreatePortfolio(ctx, testUser, "retirement")
	require.NoError(t, err)

	// Creating a second portfolio does not steal the selection.
	active, err := engine.ResolveActivePortfolio(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, p.Id, active)

	switched, err := engine.SwitchPortfolio(ctx, testUser, "retirement")
	require.NoError(t, err)
	assert.Equal(t, second.Id, switched.Id)
	active, err = engine.ResolveActivePortfolio(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, second.Id, active)

	_, err = engine.SwitchPortfolio(ctx, testUser, "no-such")
	assert.ErrorIs(t, err, ledger.ErrPortfolioNotFound)

	list, err := engine.Portfolios(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, engine.Reset(ctx, testUser))
	_, err = engine.ResolveActivePortfolio(ctx, testUser)
	assert.ErrorIs(t, err, ledger.ErrNoActivePortfolio)
	list, err = engine.Portfolios(ctx, testUser)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestHoldingsView(t *testing.T) {
	engine, store, p, _ := newTestEngine(t)
	msft := store.AddInstrument("MSFT", "Microsoft Corporation")
	store.SetPrice(msft.Id, dec("50.00"))
	ctx := context.Background()

	_, err := engine.Buy(ctx, testUser, p.Id, "AAPL", types.SizeShares(dec("10")))
	require.NoError(t, err)
	_, err = engine.Buy(ctx, testUser, p.Id, "MSFT", types.SizeShares(dec("4")))
	require.NoError(t, err)

	view, err := engine.Holdings(ctx, p.Id)
	require.NoError(t, err)
	assert.True(t, view.CashBalance.Equal(dec("8800.00")))
	// Cash plus cost value is conserved across buys.
	assert.True(t, view.Value.Equal(dec("10000.00")))
	require.Len(t, view.Holdings, 2)
	assert.Equal(t, "AAPL", view.Holdings[0].Ticker)
	assert.Equal(t, "MSFT", view.Holdings[1].Ticker)

	_, err = engine.Holdings(ctx, 999)
	assert.ErrorIs(t, err, ledger.ErrPortfolioNotFound)
}

func TestPriceEndpointsReadModel(t *testing.T) {
	engine, store, _, inst := newTestEngine(t)
	ctx := context.Background()

	quote, err := engine.Price(ctx, "aapl")
	require.NoError(t, err)
	assert.Equal(t, inst.Id, quote.InstrumentId)
	assert.True(t, quote.Price.Equal(dec("100.00")))

	store.AddInstrument("NOQUOTE", "Unquoted Corp")
	quotes, err := engine.Prices(ctx)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "AAPL", quotes[0].Ticker)
}
