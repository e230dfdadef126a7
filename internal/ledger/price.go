package ledger

import (
	"context"
	"strings"

	"papertrade/types"
)

// Price returns the current quote for one ticker.
func (e *Engine) Price(ctx context.Context, ticker string) (types.PriceQuote, error) {
	inst, err := e.store.InstrumentByTicker(ctx, strings.ToUpper(ticker))
	if err != nil {
		return types.PriceQuote{}, err
	}
	price, err := e.store.CurrentPrice(ctx, inst.Id)
	if err != nil {
		return types.PriceQuote{}, err
	}
	return types.PriceQuote{
		InstrumentId: inst.Id,
		Ticker:       inst.Ticker,
		Name:         inst.Name,
		Price:        price,
	}, nil
}

// Prices returns quotes for every instrument that has one.
func (e *Engine) Prices(ctx context.Context) ([]types.PriceQuote, error) {
	return e.store.ListPrices(ctx)
}
