package marketdata

import (
	"context"
	"errors"
	"time"

	apperrors "optionlab/internal/errors"
	"optionlab/internal/metrics"
	"optionlab/internal/models"
	"optionlab/internal/resilience"
)

// Guarded fails fast once a Provider keeps erroring. Missing data, bad
// input, local throttling and cancellation never trip it.
type Guarded struct {
	next    Provider
	breaker *resilience.Breaker
}

// NewGuarded wraps next with a circuit breaker named name.
func NewGuarded(next Provider, name string, cfg resilience.Config) *Guarded {
	b := resilience.New(name, cfg)
	b.OnStateChange = func(name string, state resilience.State) {
		metrics.SetBreakerState(name, string(state))
	}
	metrics.SetBreakerState(name, string(resilience.StateClosed))
	return &Guarded{next: next, breaker: b}
}

// State returns the breaker state.
func (g *Guarded) State() resilience.State {
	return g.breaker.State()
}

func countsAsOutage(err error) bool {
	switch {
	case apperrors.Is(err, apperrors.ErrMissingMarketData),
		apperrors.Is(err, apperrors.ErrInvalidInput),
		apperrors.Is(err, apperrors.ErrRateLimited),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

// Quote implements Provider.
func (g *Guarded) Quote(ctx context.Context, symbol string) (models.StockQuote, error) {
	return resilience.Call(g.breaker, func() (models.StockQuote, error) {
		return g.next.Quote(ctx, symbol)
	}, countsAsOutage)
}

// OptionQuote implements Provider.
func (g *Guarded) OptionQuote(ctx context.Context, contractID string) (models.OptionQuote, error) {
	return resilience.Call(g.breaker, func() (models.OptionQuote, error) {
		return g.next.OptionQuote(ctx, contractID)
	}, countsAsOutage)
}

// HistoricalCloses implements Provider.
func (g *Guarded) HistoricalCloses(ctx context.Context, contractID string, start time.Time) ([]models.Close, error) {
	return resilience.Call(g.breaker, func() ([]models.Close, error) {
		return g.next.HistoricalCloses(ctx, contractID, start)
	}, countsAsOutage)
}

// UnderlyingHistory implements Provider.
func (g *Guarded) UnderlyingHistory(ctx context.Context, symbol string, start, end time.Time) ([]models.Close, error) {
	return resilience.Call(g.breaker, func() ([]models.Close, error) {
		return g.next.UnderlyingHistory(ctx, symbol, start, end)
	}, countsAsOutage)
}
