// Package marketdata declares the quote provider interface and its
// implementations: an offline CSV provider, a rate-limited decorator and a
// latest-request-wins result holder for background retrieval.
package marketdata

import (
	"context"
	"time"

	"optionlab/internal/models"
)

// Provider supplies spot quotes, option quotes and daily close history.
// Unavailable data is reported as errors.ErrMissingMarketData.
type Provider interface {
	// Quote returns the underlying's last price and change.
	Quote(ctx context.Context, symbol string) (models.StockQuote, error)
	// OptionQuote returns last/bid/ask/open interest/volume for a contract.
	OptionQuote(ctx context.Context, contractID string) (models.OptionQuote, error)
	// HistoricalCloses returns daily closes of a contract from start on.
	HistoricalCloses(ctx context.Context, contractID string, start time.Time) ([]models.Close, error)
	// UnderlyingHistory returns daily closes of the underlying in [start, end].
	UnderlyingHistory(ctx context.Context, symbol string, start, end time.Time) ([]models.Close, error)
}
