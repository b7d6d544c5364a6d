package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "optionlab/internal/errors"
	"optionlab/internal/models"
)

func testPosition() models.Position {
	return models.Position{
		TradeDate:       time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		Symbol:          "AAPL",
		Strike:          150,
		Expiration:      time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC),
		StockTradePrice: 150,
		EffectiveDelta:  0,
		CallTradePrice:  9.8,
		CallAction:      models.Buy,
		CallQty:         1,
		PutTradePrice:   14.5,
		PutAction:       models.Buy,
		PutQty:          1,
	}
}

func TestSavePosition(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pos := testPosition()
	require.NoError(t, store.SavePosition(ctx, &pos))
	assert.NotZero(t, pos.ID)

	got, err := store.GetPosition(ctx, pos.ID)
	require.NoError(t, err)
	assert.Equal(t, pos, got)

	t.Run("same key updates entry prices and keeps id", func(t *testing.T) {
		again := testPosition()
		again.CallTradePrice = 10.1
		require.NoError(t, store.SavePosition(ctx, &again))
		assert.Equal(t, pos.ID, again.ID)

		all, err := store.ListPositions(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, 10.1, all[0].CallTradePrice)
	})

	t.Run("different action is a new position", func(t *testing.T) {
		other := testPosition()
		other.PutAction = models.Sell
		require.NoError(t, store.SavePosition(ctx, &other))
		assert.NotEqual(t, pos.ID, other.ID)
	})
}

func TestGetPositionNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetPosition(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrDataNotFound))

	err = store.DeletePosition(context.Background(), 42)
	assert.True(t, apperrors.Is(err, apperrors.ErrDataNotFound))
}

func TestDeletePosition(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pos := testPosition()
	require.NoError(t, store.SavePosition(ctx, &pos))
	require.NoError(t, store.DeletePosition(ctx, pos.ID))

	all, err := store.ListPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestTradeRecordsByPosition(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pos := testPosition()
	var recs []models.TradeRecord
	for i := 0; i < 5; i++ {
		rec := testRecord(pos.Symbol, pos.TradeDate.AddDate(0, 0, i), float64(i*10))
		recs = append(recs, rec)
	}
	// Same symbol, other position.
	other := testRecord(pos.Symbol, pos.TradeDate, 99)
	other.CallAction = models.Sell
	recs = append(recs, other)

	res, err := store.UpsertTradeRecords(ctx, recs)
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Inserted: 6}, res)

	rows, err := store.TradeRecords(ctx, TradeFilter{Position: &pos})
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, pos.TradeDate, rows[0].TradeDate)
	assert.Equal(t, 40.0, rows[4].DailyPnL)

	from := pos.TradeDate.AddDate(0, 0, 3)
	rows, err = store.TradeRecords(ctx, TradeFilter{Position: &pos, StartDate: from})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, from, rows[0].TradeDate)

	rows, err = store.TradeRecords(ctx, TradeFilter{Symbol: pos.Symbol, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestConcurrentUpsertsSameKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	date := time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC)

	variant := func(i int) models.TradeRecord {
		rec := testRecord("AAPL", date, float64(i*100))
		rec.StockClosePrice = 150 + float64(i)
		rec.CallClosePrice = 10 + float64(i)
		rec.PutClosePrice = 13 + float64(i)
		return rec
	}

	const writers = 8
	var (
		wg       conc.WaitGroup
		mu       sync.Mutex
		inserted int
		replaced int
		errs     []error
	)
	for i := 0; i < writers; i++ {
		wg.Go(func() {
			res, err := store.UpsertTradeRecords(ctx, []models.TradeRecord{variant(i)})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			inserted += res.Inserted
			replaced += res.Replaced
		})
	}
	wg.Wait()

	require.Empty(t, errs)
	assert.Equal(t, 1, inserted)
	assert.Equal(t, writers, inserted+replaced)

	rows, err := store.TradeRecords(ctx, TradeFilter{Symbol: "AAPL"})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// Every column comes from the same writer.
	got := rows[0]
	i := int(got.DailyPnL / 100)
	require.True(t, i >= 0 && i < writers, "unexpected pnl %v", got.DailyPnL)
	want := variant(i)
	assert.Equal(t, want.StockClosePrice, got.StockClosePrice)
	assert.Equal(t, want.CallClosePrice, got.CallClosePrice)
	assert.Equal(t, want.PutClosePrice, got.PutClosePrice)
	assert.Equal(t, want.DailyPnL, got.DailyPnL)
	require.True(t, got.PctChange.Valid)
	assert.InDelta(t, want.PctChange.Float64, got.PctChange.Float64, 1e-12)
}

func TestPctChangeNullRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := testRecord("MSFT", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), 0)
	rec.PctChange = models.NA
	_, err := store.UpsertTradeRecord(ctx, rec)
	require.NoError(t, err)

	rows, err := store.TradeRecords(ctx, TradeFilter{Symbol: "MSFT"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].PctChange.Valid)
}

func TestValuations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	v := models.Valuation{
		Symbol:     "AAPL",
		Date:       time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		Expiration: time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC),
		Strike:     150,
		StockPrice: 151.2,
		Volatility: 0.2,
		Call: models.LegValue{
			Premium:    models.Some(9.8),
			Bid:        models.Some(9.7),
			Ask:        models.Some(9.9),
			ModelPrice: 10.41,
			Delta:      0.58,
			ImpliedVol: models.Some(0.18),
			Verdict:    models.VerdictRich,
		},
		Put: models.LegValue{
			Premium:    models.NA,
			ModelPrice: 6.12,
			Delta:      -0.42,
			Verdict:    models.VerdictUnknown,
		},
	}
	require.NoError(t, store.SaveValuation(ctx, v))
	later := v
	later.Date = v.Date.AddDate(0, 0, 1)
	require.NoError(t, store.SaveValuation(ctx, later))

	got, err := store.GetValuations(ctx, ValuationFilter{Symbol: "AAPL"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, later, got[0])
	assert.Equal(t, v, got[1])

	got, err = store.GetValuations(ctx, ValuationFilter{Symbol: "AAPL", StartDate: later.Date})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestLastSync(t *testing.T) {
	store := newTestStore(t)

	key := RefreshSyncKey(7)
	assert.Equal(t, "refresh:7", key)
	assert.True(t, store.GetLastSync(key).IsZero())

	now := time.Date(2025, 1, 6, 16, 30, 0, 0, time.UTC)
	require.NoError(t, store.SetLastSync(key, now))
	assert.True(t, store.GetLastSync(key).Equal(now))
}
