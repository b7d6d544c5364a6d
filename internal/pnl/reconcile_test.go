package pnl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionlab/internal/calendar"
	apperrors "optionlab/internal/errors"
	"optionlab/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func longStraddle() models.Position {
	return models.Position{
		TradeDate:       day(2025, 1, 2),
		Symbol:          "AAPL",
		Strike:          150,
		Expiration:      day(2025, 6, 20),
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

func closes(values map[time.Time]float64) []models.Close {
	out := make([]models.Close, 0, len(values))
	for d, v := range values {
		out = append(out, models.Close{Date: d, Close: v})
	}
	return out
}

func TestReconcileForwardFill(t *testing.T) {
	pos := longStraddle()
	calls := closes(map[time.Time]float64{
		day(2025, 1, 2): 10,
		day(2025, 1, 6): 11,
		day(2025, 1, 7): 12,
	})
	puts := closes(map[time.Time]float64{
		day(2025, 1, 2): 14,
		day(2025, 1, 3): 13.5,
		day(2025, 1, 6): 13,
		day(2025, 1, 7): 12.5,
	})
	stock := closes(map[time.Time]float64{
		day(2025, 1, 2): 150,
		day(2025, 1, 3): 151,
		day(2025, 1, 6): 152,
		day(2025, 1, 7): 153,
	})

	rows, err := Reconcile(pos, calls, puts, stock, nil, Window{Today: day(2025, 1, 8)}, calendar.NewUS())
	require.NoError(t, err)
	require.Len(t, rows, 4)

	wantDates := []time.Time{day(2025, 1, 2), day(2025, 1, 3), day(2025, 1, 6), day(2025, 1, 7)}
	for i, r := range rows {
		assert.Equal(t, wantDates[i], r.TradeDate)
		assert.Equal(t, pos.Symbol, r.Symbol)
		assert.Equal(t, pos.CallTradePrice, r.CallTradePrice)
	}

	// Jan 3 has no call close: carried from Jan 2.
	assert.Equal(t, 10.0, rows[1].CallClosePrice)
	assert.Equal(t, 13.5, rows[1].PutClosePrice)

	assert.Equal(t, -30.0, rows[0].DailyPnL)
	assert.Equal(t, models.Some(-1.23), rows[0].PctChange)
	assert.Equal(t, 20.0, rows[3].DailyPnL)
}

func TestReconcileLeadingGapUsesEntryPrices(t *testing.T) {
	pos := longStraddle()
	calls := closes(map[time.Time]float64{day(2025, 1, 6): 11})
	puts := closes(map[time.Time]float64{day(2025, 1, 6): 13})

	rows, err := Reconcile(pos, calls, puts, nil, nil, Window{Today: day(2025, 1, 7)}, calendar.NewUS())
	require.NoError(t, err)
	require.Len(t, rows, 3)

	first := rows[0]
	assert.Equal(t, pos.CallTradePrice, first.CallClosePrice)
	assert.Equal(t, pos.PutTradePrice, first.PutClosePrice)
	assert.Equal(t, pos.StockTradePrice, first.StockClosePrice)
	assert.Equal(t, 0.0, first.DailyPnL)
	assert.Equal(t, models.Some(0), first.PctChange)
}

func TestForwardFill(t *testing.T) {
	series := []models.TimeSeriesPoint{
		{Date: day(2025, 1, 2), StockClose: models.Some(151)},
		{Date: day(2025, 1, 3), CallClose: models.Some(10), PutClose: models.Some(14)},
		{Date: day(2025, 1, 6)},
	}
	forwardFill(series, models.TimeSeriesPoint{
		CallClose:  models.Some(9.8),
		PutClose:   models.Some(14.5),
		StockClose: models.Some(150),
	})

	for _, p := range series {
		assert.True(t, p.Complete(), p.Date)
	}
	assert.Equal(t, models.Some(9.8), series[0].CallClose)
	assert.Equal(t, models.Some(151.0), series[0].StockClose)
	assert.Equal(t, models.Some(151.0), series[1].StockClose)
	assert.Equal(t, models.Some(10.0), series[2].CallClose)
	assert.Equal(t, models.Some(14.0), series[2].PutClose)
}

func TestReconcileSkipsHolidays(t *testing.T) {
	pos := longStraddle()
	pos.TradeDate = day(2024, 12, 31)
	calls := closes(map[time.Time]float64{day(2024, 12, 31): 10})
	puts := closes(map[time.Time]float64{day(2024, 12, 31): 14})

	rows, err := Reconcile(pos, calls, puts, nil, nil, Window{Today: day(2025, 1, 3)}, calendar.NewUS())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, day(2024, 12, 31), rows[0].TradeDate)
	assert.Equal(t, day(2025, 1, 2), rows[1].TradeDate)
}

func TestReconcileDropsRowsOutsideWindow(t *testing.T) {
	pos := longStraddle()
	calls := closes(map[time.Time]float64{
		day(2024, 12, 30): 5,
		day(2025, 1, 2):   10,
		day(2025, 1, 3):   10.5,
	})
	puts := closes(map[time.Time]float64{
		day(2024, 12, 30): 20,
		day(2025, 1, 2):   14,
		day(2025, 1, 3):   13,
	})

	rows, err := Reconcile(pos, calls, puts, nil, nil, Window{Today: day(2025, 1, 3)}, calendar.NewUS())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, day(2025, 1, 2), rows[0].TradeDate)
	assert.Equal(t, 10.0, rows[0].CallClosePrice)
}

func TestReconcileFromFiltersOutput(t *testing.T) {
	pos := longStraddle()
	calls := closes(map[time.Time]float64{day(2025, 1, 2): 10})
	puts := closes(map[time.Time]float64{day(2025, 1, 2): 14})

	rows, err := Reconcile(pos, calls, puts, nil, nil,
		Window{Today: day(2025, 1, 8), From: day(2025, 1, 6)}, calendar.NewUS())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, day(2025, 1, 6), rows[0].TradeDate)
	// Forward fill still runs over the filtered-out days.
	assert.Equal(t, 10.0, rows[0].CallClosePrice)
}

func TestReconcileLiveSplice(t *testing.T) {
	pos := longStraddle()
	pos.CallAction, pos.PutAction = models.Sell, models.Sell
	calls := closes(map[time.Time]float64{day(2025, 1, 7): 12})
	puts := closes(map[time.Time]float64{day(2025, 1, 7): 13})
	window := Window{Today: day(2025, 1, 8)}

	t.Run("short legs close at the ask", func(t *testing.T) {
		live := &models.LiveQuote{
			Call:  models.OptionQuote{Last: models.Some(12.6), Bid: models.Some(12.5), Ask: models.Some(12.7)},
			Put:   models.OptionQuote{Last: models.Some(13.1), Bid: models.Some(13.0), Ask: models.Some(13.2)},
			Stock: models.Some(151),
		}
		rows, err := Reconcile(pos, calls, puts, nil, live, window, calendar.NewUS())
		require.NoError(t, err)
		last := rows[len(rows)-1]
		assert.Equal(t, day(2025, 1, 8), last.TradeDate)
		assert.Equal(t, 12.7, last.CallClosePrice)
		assert.Equal(t, 13.2, last.PutClosePrice)
		assert.Equal(t, 151.0, last.StockClosePrice)
		assert.Equal(t, -160.0, last.DailyPnL)
	})

	t.Run("long legs close at the bid", func(t *testing.T) {
		long := longStraddle()
		live := &models.LiveQuote{
			Call: models.OptionQuote{Bid: models.Some(12.5), Ask: models.Some(12.7)},
			Put:  models.OptionQuote{Bid: models.Some(13.0), Ask: models.Some(13.2)},
		}
		rows, err := Reconcile(long, calls, puts, nil, live, window, calendar.NewUS())
		require.NoError(t, err)
		last := rows[len(rows)-1]
		assert.Equal(t, 12.5, last.CallClosePrice)
		assert.Equal(t, 13.0, last.PutClosePrice)
		assert.Equal(t, long.StockTradePrice, last.StockClosePrice)
	})

	t.Run("missing side falls back to last then forward fill", func(t *testing.T) {
		live := &models.LiveQuote{
			Call: models.OptionQuote{Last: models.Some(12.6), Bid: models.Some(12.5)},
			Put:  models.OptionQuote{},
		}
		rows, err := Reconcile(pos, calls, puts, nil, live, window, calendar.NewUS())
		require.NoError(t, err)
		last := rows[len(rows)-1]
		assert.Equal(t, 12.6, last.CallClosePrice)
		assert.Equal(t, 13.0, last.PutClosePrice)
	})

	t.Run("no row when today is a holiday", func(t *testing.T) {
		holiday := Window{Today: day(2025, 1, 20)}
		live := &models.LiveQuote{Call: models.OptionQuote{Last: models.Some(1)}}
		rows, err := Reconcile(pos, calls, puts, nil, live, holiday, calendar.NewUS())
		require.NoError(t, err)
		assert.Equal(t, day(2025, 1, 17), rows[len(rows)-1].TradeDate)
	})

	t.Run("no row without a live quote", func(t *testing.T) {
		rows, err := Reconcile(pos, calls, puts, nil, nil, window, calendar.NewUS())
		require.NoError(t, err)
		assert.Equal(t, day(2025, 1, 7), rows[len(rows)-1].TradeDate)
	})
}

func TestReconcileMissingSeries(t *testing.T) {
	pos := longStraddle()
	some := closes(map[time.Time]float64{day(2025, 1, 2): 10})
	window := Window{Today: day(2025, 1, 8)}

	_, err := Reconcile(pos, nil, some, some, nil, window, calendar.NewUS())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrMissingMarketData))
	var dataErr *apperrors.DataError
	assert.True(t, apperrors.As(err, &dataErr))

	_, err = Reconcile(pos, some, []models.Close{}, some, nil, window, calendar.NewUS())
	assert.True(t, apperrors.Is(err, apperrors.ErrMissingMarketData))
}

func TestReconcileRejectsInvalidPosition(t *testing.T) {
	some := closes(map[time.Time]float64{day(2025, 1, 2): 10})
	window := Window{Today: day(2025, 1, 8)}

	cases := map[string]func(*models.Position){
		"no symbol":      func(p *models.Position) { p.Symbol = "" },
		"bad action":     func(p *models.Position) { p.CallAction = "hold" },
		"negative qty":   func(p *models.Position) { p.PutQty = -1 },
		"zero strike":    func(p *models.Position) { p.Strike = 0 },
		"negative price": func(p *models.Position) { p.CallTradePrice = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			pos := longStraddle()
			mutate(&pos)
			_, err := Reconcile(pos, some, some, some, nil, window, calendar.NewUS())
			assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
		})
	}

	_, err := Reconcile(longStraddle(), some, some, some, nil, Window{}, calendar.NewUS())
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
}

func TestDailyPnLSignTable(t *testing.T) {
	tests := []struct {
		pair models.ActionPair
		want float64
	}{
		{models.ActionPair{Call: models.Buy, Put: models.Buy}, 250},
		{models.ActionPair{Call: models.Buy, Put: models.Sell}, 850},
		{models.ActionPair{Call: models.Sell, Put: models.Buy}, -550},
		{models.ActionPair{Call: models.Sell, Put: models.Sell}, 50},
	}

	for _, tt := range tests {
		t.Run(tt.pair.String(), func(t *testing.T) {
			pos := models.Position{
				StockTradePrice: 100,
				EffectiveDelta:  0.5,
				CallTradePrice:  10,
				CallAction:      tt.pair.Call,
				CallQty:         2,
				PutTradePrice:   5,
				PutAction:       tt.pair.Put,
				PutQty:          3,
			}
			assert.Equal(t, tt.want, DailyPnL(pos, 12, 4, 103))
		})
	}
}

func TestPctChange(t *testing.T) {
	pos := longStraddle()
	assert.Equal(t, models.Some(4.12), PctChange(pos, 100))

	free := pos
	free.CallTradePrice, free.PutTradePrice = 0, 0
	assert.False(t, PctChange(free, 100).Valid)
}
