package pnl

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"

	apperrors "optionlab/internal/errors"
	"optionlab/internal/logging"
	"optionlab/internal/marketdata"
	"optionlab/internal/metrics"
	"optionlab/internal/models"
	"optionlab/internal/resilience"
	"optionlab/internal/store"
	"optionlab/pkg/utils"
)

// Calendar is the trading calendar the tracker reconciles against.
type Calendar interface {
	IsTradingDay(date time.Time) bool
	// Today returns the exchange-local date of now.
	Today(now time.Time) time.Time
}

// TrackerConfig configures a Tracker.
type TrackerConfig struct {
	Concurrency int
	Retry       utils.RetryConfig
}

// Tracker keeps stored positions reconciled with the market.
type Tracker struct {
	provider    marketdata.Provider
	store       store.DataStore
	cal         Calendar
	logger      zerolog.Logger
	retry       utils.RetryConfig
	concurrency int
	now         func() time.Time
}

// NewTracker creates a tracker.
func NewTracker(provider marketdata.Provider, st store.DataStore, cal Calendar, logger zerolog.Logger, cfg TrackerConfig) *Tracker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry = utils.DefaultRetryConfig()
	}
	// Missing data and bad input will not fix themselves on retry, and an
	// open circuit stays open for longer than the backoff.
	cfg.Retry.PermanentErrors = append(cfg.Retry.PermanentErrors,
		apperrors.ErrMissingMarketData, apperrors.ErrInvalidInput, resilience.ErrOpen)

	return &Tracker{
		provider:    provider,
		store:       st,
		cal:         cal,
		logger:      logger.With().Str("component", "pnl").Logger(),
		retry:       cfg.Retry,
		concurrency: cfg.Concurrency,
		now:         time.Now,
	}
}

// Result is the outcome of refreshing one position.
type Result struct {
	Position models.Position      `json:"position"`
	Records  []models.TradeRecord `json:"records"`
	Upserts  store.UpsertResult   `json:"-"`
	Live     bool                 `json:"live"`

	at time.Time
}

// Last returns the most recent record, if any.
func (r Result) Last() (models.TradeRecord, bool) {
	if len(r.Records) == 0 {
		return models.TradeRecord{}, false
	}
	return r.Records[len(r.Records)-1], true
}

// AddTrade validates and stores a position. pos.ID is set on success.
func (t *Tracker) AddTrade(ctx context.Context, pos *models.Position) error {
	pos.TradeDate = models.Day(pos.TradeDate)
	pos.Expiration = models.Day(pos.Expiration)
	if err := ValidatePosition(*pos); err != nil {
		return err
	}
	if err := t.store.SavePosition(ctx, pos); err != nil {
		return fmt.Errorf("saving position: %w", err)
	}
	t.logger.Info().
		Int64("position_id", pos.ID).
		Str("symbol", pos.Symbol).
		Str("actions", pos.Actions().String()).
		Msg("Position saved")
	return nil
}

// Refresh fetches history for pos, reconciles it up to today and upserts
// every row. A failed live quote is logged and the Today row is skipped.
func (t *Tracker) Refresh(ctx context.Context, pos models.Position) (Result, error) {
	res, err := t.reconcile(ctx, pos)
	if err != nil {
		return res, err
	}
	return t.persist(ctx, res)
}

func (t *Tracker) refreshLogger(pos models.Position) zerolog.Logger {
	return logging.WithSymbol(logging.WithOperation(t.logger, "refresh"), pos.Symbol)
}

// reconcile fetches market data and builds the rows of pos without
// storing them.
func (t *Tracker) reconcile(ctx context.Context, pos models.Position) (res Result, err error) {
	start := time.Now()
	logger := t.refreshLogger(pos)
	defer func() {
		metrics.RecordReconcile(time.Since(start), err)
		last, _ := res.Last()
		logging.LogReconcile(logger, pos.Symbol, len(res.Records), last.DailyPnL, time.Since(start), err)
	}()

	res.Position = pos
	res.at = t.now()
	today := t.cal.Today(res.at)
	callID := marketdata.ContractID(pos.Symbol, pos.Expiration, models.Call, pos.Strike)
	putID := marketdata.ContractID(pos.Symbol, pos.Expiration, models.Put, pos.Strike)

	calls, err := t.closes(ctx, logger, "HistoricalCloses", callID, func() ([]models.Close, error) {
		return t.provider.HistoricalCloses(ctx, callID, pos.TradeDate)
	})
	if err != nil {
		return res, fmt.Errorf("call history %s: %w", callID, err)
	}
	puts, err := t.closes(ctx, logger, "HistoricalCloses", putID, func() ([]models.Close, error) {
		return t.provider.HistoricalCloses(ctx, putID, pos.TradeDate)
	})
	if err != nil {
		return res, fmt.Errorf("put history %s: %w", putID, err)
	}
	stock, err := t.closes(ctx, logger, "UnderlyingHistory", pos.Symbol, func() ([]models.Close, error) {
		return t.provider.UnderlyingHistory(ctx, pos.Symbol, pos.TradeDate, today)
	})
	if apperrors.Is(err, apperrors.ErrMissingMarketData) {
		logger.Warn().Err(err).Msg("No underlying history, holding entry price")
		stock, err = nil, nil
	}
	if err != nil {
		return res, fmt.Errorf("underlying history: %w", err)
	}

	live, err := t.live(ctx, pos.Symbol, callID, putID)
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		logger.Warn().Err(err).Msg("Live quote unavailable, skipping today's row")
	}
	res.Live = live != nil

	records, err := Reconcile(pos, calls, puts, stock, live, Window{Today: today}, t.cal)
	if err != nil {
		return res, err
	}
	res.Records = records
	return res, nil
}

// persist upserts the rows of res and records the refresh time.
func (t *Tracker) persist(ctx context.Context, res Result) (Result, error) {
	pos := res.Position
	logger := t.refreshLogger(pos)

	var err error
	res.Upserts, err = t.store.UpsertTradeRecords(ctx, res.Records)
	if err != nil {
		return res, fmt.Errorf("storing trade records: %w", err)
	}
	replaced := make(map[models.TradeKey]bool, len(res.Upserts.ReplacedKeys))
	for _, k := range res.Upserts.ReplacedKeys {
		replaced[k] = true
	}
	for _, r := range res.Records {
		logging.LogUpsert(logger, r.Symbol, r.TradeDate, replaced[r.Key()])
	}

	if last, ok := res.Last(); ok {
		metrics.PositionPnL.WithLabelValues(pos.Symbol, PositionLabel(pos)).Set(last.DailyPnL)
	}
	if pos.ID != 0 {
		if err := t.store.SetLastSync(store.RefreshSyncKey(pos.ID), res.at); err != nil {
			logger.Warn().Err(err).Msg("Failed to record refresh time")
		}
	}
	return res, nil
}

// refreshLatest runs request gen of a watch. Its rows are stored only while
// gen is the newest request, so a superseded refresh that finishes late
// never overwrites what a newer one stored.
func (t *Tracker) refreshLatest(ctx context.Context, pos models.Position, latest *marketdata.Latest[Result], gen uint64) (Result, error, bool) {
	res, err := t.reconcile(ctx, pos)
	if err != nil {
		return res, err, latest.Commit(gen, res, err)
	}
	return latest.CommitWith(gen, func() (Result, error) {
		return t.persist(ctx, res)
	})
}

func (t *Tracker) closes(ctx context.Context, logger zerolog.Logger, method, id string, fetch func() ([]models.Close, error)) ([]models.Close, error) {
	start := time.Now()
	out, err := utils.RetryWithResult(ctx, t.retry, fetch)
	logging.LogAPICall(logger, method, id, time.Since(start), err)
	return out, err
}

// live fetches the same-day quotes; any failure drops the whole quote.
func (t *Tracker) live(ctx context.Context, symbol, callID, putID string) (*models.LiveQuote, error) {
	stock, err := utils.RetryWithResult(ctx, t.retry, func() (models.StockQuote, error) {
		return t.provider.Quote(ctx, symbol)
	})
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", symbol, err)
	}
	call, err := utils.RetryWithResult(ctx, t.retry, func() (models.OptionQuote, error) {
		return t.provider.OptionQuote(ctx, callID)
	})
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", callID, err)
	}
	put, err := utils.RetryWithResult(ctx, t.retry, func() (models.OptionQuote, error) {
		return t.provider.OptionQuote(ctx, putID)
	})
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", putID, err)
	}
	return &models.LiveQuote{Call: call, Put: put, Stock: stock.Price}, nil
}

// RefreshAll refreshes every stored position concurrently. Results are
// returned for the positions that succeeded along with the joined errors of
// those that did not.
func (t *Tracker) RefreshAll(ctx context.Context) ([]Result, error) {
	positions, err := t.store.ListPositions(ctx)
	if err != nil {
		return nil, err
	}

	p := pool.NewWithResults[Result]().
		WithContext(ctx).
		WithMaxGoroutines(t.concurrency)
	for _, pos := range positions {
		p.Go(func(ctx context.Context) (Result, error) {
			res, err := t.Refresh(ctx, pos)
			if err != nil {
				return res, fmt.Errorf("position %d (%s): %w", pos.ID, pos.Symbol, err)
			}
			return res, nil
		})
	}
	return p.Wait()
}

// History returns the stored rows of pos from the given date on; a zero
// from returns the whole series.
func (t *Tracker) History(ctx context.Context, pos models.Position, from time.Time) ([]models.TradeRecord, error) {
	filter := store.TradeFilter{Position: &pos}
	if !from.IsZero() {
		filter.StartDate = models.Day(from)
	}
	return t.store.TradeRecords(ctx, filter)
}

// LastRefresh returns when pos was last refreshed, zero if never.
func (t *Tracker) LastRefresh(pos models.Position) time.Time {
	return t.store.GetLastSync(store.RefreshSyncKey(pos.ID))
}

// Watch refreshes pos immediately and then every interval until ctx is
// done. Refreshes may overlap; only the most recently started one stores
// its rows and reaches onUpdate, so a slow stale refresh never overwrites
// a newer one.
func (t *Tracker) Watch(ctx context.Context, pos models.Position, interval time.Duration, onUpdate func(Result, error)) error {
	if interval <= 0 {
		return apperrors.NewValidationError("interval", interval, "must be positive")
	}

	var latest marketdata.Latest[Result]
	var wg conc.WaitGroup
	defer wg.Wait()

	refresh := func() {
		gen := latest.Begin()
		wg.Go(func() {
			res, err, ok := t.refreshLatest(ctx, pos, &latest, gen)
			if ok && ctx.Err() == nil && onUpdate != nil {
				onUpdate(res, err)
			}
		})
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	refresh()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			refresh()
		}
	}
}

// PositionLabel is a short human label for a position.
func PositionLabel(pos models.Position) string {
	return fmt.Sprintf("%s %s %g %s", pos.Symbol, pos.Expiration.Format(models.DateLayout), pos.Strike, pos.Actions())
}
