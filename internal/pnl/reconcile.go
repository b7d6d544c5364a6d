// Package pnl reconciles tracked straddle positions against market closes
// into daily mark-to-market PnL rows.
package pnl

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"optionlab/internal/calendar"
	apperrors "optionlab/internal/errors"
	"optionlab/internal/models"
)

// Window bounds a reconciliation. Provider rows dated Today or later are
// ignored; Today itself comes only from a live quote. Rows before From are
// computed but not returned.
type Window struct {
	Today time.Time
	From  time.Time
}

// Reconcile builds one TradeRecord per trading day from the position's entry
// date to Today. Gaps in the close series are forward-filled starting from
// the entry prices; a live quote, when given, supplies the Today row at the
// price the legs would be closed at.
func Reconcile(trade models.Position, calls, puts, stock []models.Close, live *models.LiveQuote, window Window, cal calendar.Calendar) ([]models.TradeRecord, error) {
	if err := ValidatePosition(trade); err != nil {
		return nil, err
	}
	if window.Today.IsZero() {
		return nil, apperrors.NewValidationError("today", window.Today, "reconciliation date is required")
	}
	if len(calls) == 0 {
		return nil, apperrors.MissingData("call_history", trade.Symbol, "no call closes")
	}
	if len(puts) == 0 {
		return nil, apperrors.MissingData("put_history", trade.Symbol, "no put closes")
	}
	if cal == nil {
		cal = calendar.NewUS()
	}

	entry := models.Day(trade.TradeDate)
	today := models.Day(window.Today)

	callByDay := index(calls, entry, today)
	putByDay := index(puts, entry, today)
	stockByDay := index(stock, entry, today)

	days := make(map[time.Time]bool)
	for _, m := range []map[time.Time]float64{callByDay, putByDay, stockByDay} {
		for d := range m {
			days[d] = true
		}
	}
	for d := entry; d.Before(today); d = d.AddDate(0, 0, 1) {
		if cal.IsTradingDay(d) {
			days[d] = true
		}
	}

	dates := make([]time.Time, 0, len(days)+1)
	for d := range days {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	series := make([]models.TimeSeriesPoint, 0, len(dates)+1)
	for _, d := range dates {
		series = append(series, models.TimeSeriesPoint{
			Date:       d,
			CallClose:  lookup(callByDay, d),
			PutClose:   lookup(putByDay, d),
			StockClose: lookup(stockByDay, d),
		})
	}
	if live != nil && !today.Before(entry) && cal.IsTradingDay(today) {
		series = append(series, models.TimeSeriesPoint{
			Date:       today,
			CallClose:  live.Call.ExitPrice(trade.CallAction.Opposite()),
			PutClose:   live.Put.ExitPrice(trade.PutAction.Opposite()),
			StockClose: live.Stock,
		})
	}
	forwardFill(series, models.TimeSeriesPoint{
		CallClose:  models.Some(trade.CallTradePrice),
		PutClose:   models.Some(trade.PutTradePrice),
		StockClose: models.Some(trade.StockTradePrice),
	})

	from := models.Day(window.From)
	records := make([]models.TradeRecord, 0, len(series))
	for _, p := range series {
		if !window.From.IsZero() && p.Date.Before(from) {
			continue
		}
		records = append(records, record(trade, p))
	}
	return records, nil
}

func lookup(byDay map[time.Time]float64, d time.Time) models.NullFloat {
	if v, ok := byDay[d]; ok {
		return models.Some(v)
	}
	return models.NA
}

// forwardFill replaces every missing price with the previous row's, using
// seed for gaps at the start. Afterwards every point is Complete.
func forwardFill(series []models.TimeSeriesPoint, seed models.TimeSeriesPoint) {
	prev := seed
	for i := range series {
		p := &series[i]
		if !p.CallClose.Valid {
			p.CallClose = prev.CallClose
		}
		if !p.PutClose.Valid {
			p.PutClose = prev.PutClose
		}
		if !p.StockClose.Valid {
			p.StockClose = prev.StockClose
		}
		prev = *p
	}
}

// index keys closes by calendar day, keeping entry <= day < today. Later
// duplicates win.
func index(closes []models.Close, entry, today time.Time) map[time.Time]float64 {
	out := make(map[time.Time]float64, len(closes))
	for _, c := range closes {
		d := models.Day(c.Date)
		if d.Before(entry) || !d.Before(today) {
			continue
		}
		if math.IsNaN(c.Close) || math.IsInf(c.Close, 0) {
			continue
		}
		out[d] = c.Close
	}
	return out
}

func record(trade models.Position, p models.TimeSeriesPoint) models.TradeRecord {
	call, put, stock := p.CallClose.Float64, p.PutClose.Float64, p.StockClose.Float64
	pnl := DailyPnL(trade, call, put, stock)
	return models.TradeRecord{
		TradeDate:       p.Date,
		Symbol:          trade.Symbol,
		Strike:          trade.Strike,
		Expiration:      models.Day(trade.Expiration),
		StockTradePrice: trade.StockTradePrice,
		EffectiveDelta:  trade.EffectiveDelta,
		CallTradePrice:  trade.CallTradePrice,
		CallAction:      trade.CallAction,
		CallQty:         trade.CallQty,
		PutTradePrice:   trade.PutTradePrice,
		PutAction:       trade.PutAction,
		PutQty:          trade.PutQty,
		StockClosePrice: stock,
		CallClosePrice:  call,
		PutClosePrice:   put,
		DailyPnL:        pnl,
		PctChange:       PctChange(trade, pnl),
	}
}

// DailyPnL is the mark-to-market PnL of trade at the given closes, rounded
// half away from zero to cents. Option terms take their sign from the
// (call, put) action pair; the stock hedge is EffectiveDelta * (St - S0).
func DailyPnL(trade models.Position, callClose, putClose, stockClose float64) float64 {
	signs, _ := models.SignsForPair(trade.Actions())
	nc, np := float64(trade.CallQty), float64(trade.PutQty)
	raw := (nc*signs.CallOption*(callClose-trade.CallTradePrice) +
		np*signs.PutOption*(putClose-trade.PutTradePrice) +
		trade.EffectiveDelta*(stockClose-trade.StockTradePrice)) * models.ContractMultiplier
	return round2(raw)
}

// PctChange is pnl as a percentage of the premium outlay, NA when the
// position cost nothing.
func PctChange(trade models.Position, pnl float64) models.NullFloat {
	investment := trade.Investment()
	if investment == 0 {
		return models.NA
	}
	return models.Some(round2(pnl / investment * 100))
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// ValidatePosition checks that trade can be reconciled.
func ValidatePosition(trade models.Position) error {
	switch {
	case strings.TrimSpace(trade.Symbol) == "":
		return apperrors.NewValidationError("symbol", trade.Symbol, "symbol is required")
	case trade.TradeDate.IsZero():
		return apperrors.NewValidationError("trade_date", trade.TradeDate, "trade date is required")
	case trade.Expiration.IsZero():
		return apperrors.NewValidationError("expiration", trade.Expiration, "expiration is required")
	case !trade.CallAction.Valid():
		return apperrors.NewValidationError("call_action", trade.CallAction, "must be buy or sell")
	case !trade.PutAction.Valid():
		return apperrors.NewValidationError("put_action", trade.PutAction, "must be buy or sell")
	case trade.CallQty < 0:
		return apperrors.NewValidationError("call_qty", trade.CallQty, "must be non-negative")
	case trade.PutQty < 0:
		return apperrors.NewValidationError("put_qty", trade.PutQty, "must be non-negative")
	case trade.Strike <= 0 || !finite(trade.Strike):
		return apperrors.NewValidationError("strike", trade.Strike, "must be positive")
	}
	for field, v := range map[string]float64{
		"stock_trade_price": trade.StockTradePrice,
		"call_trade_price":  trade.CallTradePrice,
		"put_trade_price":   trade.PutTradePrice,
	} {
		if v < 0 || !finite(v) {
			return apperrors.NewValidationError(field, v, "must be a non-negative price")
		}
	}
	if !finite(trade.EffectiveDelta) {
		return apperrors.NewValidationError("effective_delta", trade.EffectiveDelta, "must be finite")
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
