package ledger

import (
	"context"

	"papertrade/types"
)

// CreatePortfolio opens a new portfolio for the user. Names are unique
// per owner; the store reports a clash as ErrDuplicatePortfolio.
func (e *Engine) CreatePortfolio(ctx context.Context, userId int64, name string) (types.Portfolio, error) {
	p, err := e.store.CreatePortfolio(ctx, userId, name)
	if err != nil {
		return types.Portfolio{}, err
	}
	e.log.Info().Int64("user", userId).Int64("portfolio", p.Id).Str("name", p.Name).Msg("portfolio created")
	return p, nil
}

// Portfolios lists the user's portfolios with cash plus holdings value.
func (e *Engine) Portfolios(ctx context.Context, userId int64) ([]types.PortfolioSummary, error) {
	return e.store.Portfolios(ctx, userId)
}

// SwitchPortfolio updates which portfolio the user's orders run
// against, addressed by name the way the original selection flow works.
func (e *Engine) SwitchPortfolio(ctx context.Context, userId int64, name string) (types.Portfolio, error) {
	p, err := e.store.PortfolioByName(ctx, userId, name)
	if err != nil {
		return types.Portfolio{}, err
	}
	if err := e.store.SetActivePortfolio(ctx, userId, p.Id); err != nil {
		return types.Portfolio{}, err
	}
	return p, nil
}

// Reset removes all of the user's portfolios, holdings and selection.
// The transaction log is append-only and stays.
func (e *Engine) Reset(ctx context.Context, userId int64) error {
	if err := e.store.ResetUser(ctx, userId); err != nil {
		return err
	}
	e.log.Info().Int64("user", userId).Msg("portfolios reset")
	return nil
}
