package marketdata

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	apperrors "optionlab/internal/errors"
	"optionlab/internal/metrics"
	"optionlab/internal/models"
)

// Throttled rate-limits calls to a Provider and records per-method metrics.
type Throttled struct {
	next    Provider
	limiter *rate.Limiter
	name    string
}

// NewThrottled wraps next with a token bucket of rps requests per second.
func NewThrottled(next Provider, name string, rps float64, burst int) *Throttled {
	if burst < 1 {
		burst = 1
	}
	return &Throttled{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		name:    name,
	}
}

// wait takes a token for method. A token that cannot be had before ctx ends
// fails with ErrRateLimited, still wrapping the context error.
func (t *Throttled) wait(ctx context.Context, method string) (func(error), error) {
	if err := t.limiter.Wait(ctx); err != nil {
		err = fmt.Errorf("%s %s: %w: %w", t.name, method, apperrors.ErrRateLimited, err)
		metrics.ProviderRequests.WithLabelValues(t.name, method, metrics.Status(err)).Inc()
		return nil, err
	}
	start := time.Now()
	return func(err error) {
		metrics.ProviderLatency.WithLabelValues(t.name, method).Observe(time.Since(start).Seconds())
		metrics.ProviderRequests.WithLabelValues(t.name, method, metrics.Status(err)).Inc()
	}, nil
}

// Quote implements Provider.
func (t *Throttled) Quote(ctx context.Context, symbol string) (q models.StockQuote, err error) {
	done, err := t.wait(ctx, "quote")
	if err != nil {
		return q, err
	}
	defer func() { done(err) }()
	return t.next.Quote(ctx, symbol)
}

// OptionQuote implements Provider.
func (t *Throttled) OptionQuote(ctx context.Context, contractID string) (q models.OptionQuote, err error) {
	done, err := t.wait(ctx, "option_quote")
	if err != nil {
		return q, err
	}
	defer func() { done(err) }()
	return t.next.OptionQuote(ctx, contractID)
}

// HistoricalCloses implements Provider.
func (t *Throttled) HistoricalCloses(ctx context.Context, contractID string, start time.Time) (c []models.Close, err error) {
	done, err := t.wait(ctx, "historical_closes")
	if err != nil {
		return nil, err
	}
	defer func() { done(err) }()
	return t.next.HistoricalCloses(ctx, contractID, start)
}

// UnderlyingHistory implements Provider.
func (t *Throttled) UnderlyingHistory(ctx context.Context, symbol string, start, end time.Time) (c []models.Close, err error) {
	done, err := t.wait(ctx, "underlying_history")
	if err != nil {
		return nil, err
	}
	defer func() { done(err) }()
	return t.next.UnderlyingHistory(ctx, symbol, start, end)
}
