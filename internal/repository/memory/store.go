// Package memory is an in-memory implementation of the ledger store,
// used by tests and the dev `serve --store memory` mode. A single
// mutex plus clone-mutate-swap per atomic unit gives the same
// serializable check-then-mutate guarantee the Postgres store gets
// from row locks.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"papertrade/internal/ledger"
	"papertrade/internal/money"
	"papertrade/types"
)

// DefaultStartingBalance mirrors the schema seed for new portfolios.
var DefaultStartingBalance = decimal.RequireFromString("10000.00")

type holdingKey struct {
	portfolioId  int64
	instrumentId int64
}

// state is everything an atomic unit may mutate. InOrderTx stages a
// deep copy and swaps it in only when the unit succeeds.
type state struct {
	portfolios   map[int64]types.Portfolio
	holdings     map[holdingKey]types.Holding
	transactions []types.Transaction
	nextTxnId    int64
}

type Store struct {
	mu sync.RWMutex

	instruments map[int64]types.Instrument
	tickers     map[string]int64
	prices      map[int64]decimal.Decimal
	active      map[int64]int64

	st state

	nextInstrumentId int64
	nextPortfolioId  int64
}

func New() *Store {
	return &Store{
		instruments: make(map[int64]types.Instrument),
		tickers:     make(map[string]int64),
		prices:      make(map[int64]decimal.Decimal),
		active:      make(map[int64]int64),
		st: state{
			portfolios: make(map[int64]types.Portfolio),
			holdings:   make(map[holdingKey]types.Holding),
			nextTxnId:  1,
		},
		nextInstrumentId: 1,
		nextPortfolioId:  1,
	}
}

// AddInstrument registers a tradable instrument. Dev-mode seeding;
// instruments are immutable once created.
func (s *Store) AddInstrument(ticker, name string) types.Instrument {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst := types.Instrument{Id: s.nextInstrumentId, Ticker: ticker, Name: name}
	s.nextInstrumentId++
	s.instruments[inst.Id] = inst
	s.tickers[ticker] = inst.Id
	return inst
}

// SetPrice is the write hook for the external price updater.
func (s *Store) SetPrice(instrumentId int64, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[instrumentId] = price
}

func (s *Store) InstrumentByTicker(_ context.Context, ticker string) (types.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.tickers[ticker]
	if !ok {
		return types.Instrument{}, fmt.Errorf("ticker %s: %w", ticker, ledger.ErrInstrumentNotFound)
	}
	return s.instruments[id], nil
}

func (s *Store) CurrentPrice(_ context.Context, instrumentId int64) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	price, ok := s.prices[instrumentId]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("instrument %d: %w", instrumentId, ledger.ErrPriceUnavailable)
	}
	return price, nil
}

func (s *Store) ListPrices(_ context.Context) ([]types.PriceQuote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var quotes []types.PriceQuote
	for id, price := range s.prices {
		inst := s.instruments[id]
		quotes = append(quotes, types.PriceQuote{
			InstrumentId: id,
			Ticker:       inst.Ticker,
			Name:         inst.Name,
			Price:        price,
		})
	}
	sort.Slice(quotes, func(i, j int) bool { return quotes[i].Ticker < quotes[j].Ticker })
	return quotes, nil
}

func (s *Store) CreatePortfolio(_ context.Context, userId int64, name string) (types.Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.st.portfolios {
		if p.UserId == userId && p.Name == name {
			return types.Portfolio{}, fmt.Errorf("portfolio %q: %w", name, ledger.ErrDuplicatePortfolio)
		}
	}
	p := types.Portfolio{
		Id:          s.nextPortfolioId,
		UserId:      userId,
		Name:        name,
		CashBalance: DefaultStartingBalance,
	}
	s.nextPortfolioId++
	s.st.portfolios[p.Id] = p
	if _, ok := s.active[userId]; !ok {
		s.active[userId] = p.Id
	}
	return p, nil
}

func (s *Store) PortfolioByName(_ context.Context, userId int64, name string) (types.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.st.portfolios {
		if p.UserId == userId && p.Name == name {
			return p, nil
		}
	}
	return types.Portfolio{}, fmt.Errorf("portfolio %q: %w", name, ledger.ErrPortfolioNotFound)
}

func (s *Store) Portfolios(_ context.Context, userId int64) ([]types.PortfolioSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.PortfolioSummary
	for _, p := range s.st.portfolios {
		if p.UserId != userId {
			continue
		}
		out = append(out, types.PortfolioSummary{
			Id:          p.Id,
			Name:        p.Name,
			CashBalance: p.CashBalance,
			Value:       p.CashBalance.Add(s.holdingsValue(p.Id)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out, nil
}

func (s *Store) ActivePortfolio(_ context.Context, userId int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.active[userId]
	if !ok {
		return 0, fmt.Errorf("user %d: %w", userId, ledger.ErrNoActivePortfolio)
	}
	return id, nil
}

func (s *Store) SetActivePortfolio(_ context.Context, userId, portfolioId int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[userId] = portfolioId
	return nil
}

func (s *Store) ResetUser(_ context.Context, userId int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.st.portfolios {
		if p.UserId != userId {
			continue
		}
		for key := range s.st.holdings {
			if key.portfolioId == id {
				delete(s.st.holdings, key)
			}
		}
		delete(s.st.portfolios, id)
	}
	delete(s.active, userId)
	return nil
}

func (s *Store) PortfolioView(_ context.Context, portfolioId int64) (types.PortfolioView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.st.portfolios[portfolioId]
	if !ok {
		return types.PortfolioView{}, fmt.Errorf("portfolio %d: %w", portfolioId, ledger.ErrPortfolioNotFound)
	}
	view := types.PortfolioView{
		PortfolioId: portfolioId,
		CashBalance: p.CashBalance,
		Value:       p.CashBalance.Add(s.holdingsValue(portfolioId)),
	}
	for key, h := range s.st.holdings {
		if key.portfolioId != portfolioId {
			continue
		}
		view.Holdings = append(view.Holdings, types.HoldingView{
			InstrumentId: key.instrumentId,
			Ticker:       s.instruments[key.instrumentId].Ticker,
			Shares:       h.Shares,
			Value:        h.CostValue,
		})
	}
	sort.Slice(view.Holdings, func(i, j int) bool { return view.Holdings[i].Ticker < view.Holdings[j].Ticker })
	return view, nil
}

// Holding exposes the raw row for tests.
func (s *Store) Holding(portfolioId, instrumentId int64) (types.Holding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.st.holdings[holdingKey{portfolioId, instrumentId}]
	return h, ok
}

func (s *Store) Transactions(_ context.Context, portfolioId int64) ([]types.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Transaction
	for i := len(s.st.transactions) - 1; i >= 0; i-- {
		if s.st.transactions[i].PortfolioId == portfolioId {
			out = append(out, s.st.transactions[i])
		}
	}
	return out, nil
}

func (s *Store) TransactionsByUser(_ context.Context, userId int64) (map[int64][]types.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	grouped := make(map[int64][]types.Transaction)
	for i := len(s.st.transactions) - 1; i >= 0; i-- {
		txn := s.st.transactions[i]
		if txn.UserId != userId {
			continue
		}
		if _, ok := s.st.portfolios[txn.PortfolioId]; !ok {
			// Detached from a portfolio removed by reset.
			continue
		}
		grouped[txn.PortfolioId] = append(grouped[txn.PortfolioId], txn)
	}
	return grouped, nil
}

// InOrderTx serializes atomic units behind the store mutex. fn runs
// against a staged copy of the mutable state which replaces the live
// state only on success, so a failure anywhere leaves nothing behind.
func (s *Store) InOrderTx(_ context.Context, fn func(tx ledger.OrderTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stage := s.st.clone()
	if err := fn(&orderTx{st: stage}); err != nil {
		return err
	}
	s.st = *stage
	return nil
}

// holdingsValue sums the cost value of a portfolio's rows. Callers
// hold the lock.
func (s *Store) holdingsValue(portfolioId int64) decimal.Decimal {
	total := decimal.Zero
	for key, h := range s.st.holdings {
		if key.portfolioId == portfolioId {
			total = total.Add(h.CostValue)
		}
	}
	return total
}

func (st *state) clone() *state {
	next := &state{
		portfolios:   make(map[int64]types.Portfolio, len(st.portfolios)),
		holdings:     make(map[holdingKey]types.Holding, len(st.holdings)),
		transactions: append([]types.Transaction(nil), st.transactions...),
		nextTxnId:    st.nextTxnId,
	}
	for id, p := range st.portfolios {
		next.portfolios[id] = p
	}
	for key, h := range st.holdings {
		next.holdings[key] = h
	}
	return next
}

// orderTx mutates the staged state only.
type orderTx struct {
	st *state
}

func (t *orderTx) Debit(_ context.Context, portfolioId int64, amount decimal.Decimal) (decimal.Decimal, error) {
	p, ok := t.st.portfolios[portfolioId]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("portfolio %d: %w", portfolioId, ledger.ErrPortfolioNotFound)
	}
	if p.CashBalance.LessThan(amount) {
		return decimal.Decimal{}, fmt.Errorf("balance %s, need %s: %w", p.CashBalance, amount, ledger.ErrInsufficientFunds)
	}
	p.CashBalance = p.CashBalance.Sub(amount)
	t.st.portfolios[portfolioId] = p
	return p.CashBalance, nil
}

func (t *orderTx) Credit(_ context.Context, portfolioId int64, amount decimal.Decimal) (decimal.Decimal, error) {
	p, ok := t.st.portfolios[portfolioId]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("portfolio %d: %w", portfolioId, ledger.ErrPortfolioNotFound)
	}
	p.CashBalance = p.CashBalance.Add(amount)
	t.st.portfolios[portfolioId] = p
	return p.CashBalance, nil
}

func (t *orderTx) AddShares(_ context.Context, portfolioId, instrumentId int64, shares, cost decimal.Decimal) error {
	key := holdingKey{portfolioId, instrumentId}
	h, ok := t.st.holdings[key]
	if !ok {
		h = types.Holding{PortfolioId: portfolioId, InstrumentId: instrumentId, Shares: decimal.Zero, CostValue: decimal.Zero}
	}
	h.Shares = h.Shares.Add(shares)
	h.CostValue = h.CostValue.Add(cost)
	t.st.holdings[key] = h
	return nil
}

func (t *orderTx) RemoveShares(_ context.Context, portfolioId, instrumentId int64, shares, proceeds decimal.Decimal) (decimal.Decimal, error) {
	key := holdingKey{portfolioId, instrumentId}
	h, ok := t.st.holdings[key]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("no position held: %w", ledger.ErrInsufficientShares)
	}
	if h.Shares.LessThan(shares) {
		return decimal.Decimal{}, fmt.Errorf("own %s, selling %s: %w", h.Shares, shares, ledger.ErrInsufficientShares)
	}
	remaining := h.Shares.Sub(shares)
	if money.BelowEpsilon(remaining) {
		delete(t.st.holdings, key)
		return decimal.Zero, nil
	}
	h.Shares = remaining
	h.CostValue = h.CostValue.Sub(proceeds)
	if h.CostValue.IsNegative() {
		h.CostValue = decimal.Zero
	}
	t.st.holdings[key] = h
	return remaining, nil
}

func (t *orderTx) AppendTransaction(_ context.Context, portfolioId, userId, instrumentId int64, kind types.TransactionKind, change decimal.Decimal) (int64, error) {
	txn := types.Transaction{
		Id:           t.st.nextTxnId,
		PortfolioId:  portfolioId,
		UserId:       userId,
		InstrumentId: instrumentId,
		Kind:         kind,
		Change:       change,
		Timestamp:    time.Now().UTC(),
	}
	t.st.nextTxnId++
	t.st.transactions = append(t.st.transactions, txn)
	return txn.Id, nil
}
