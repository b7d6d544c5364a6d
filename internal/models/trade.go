package models

import "time"

// DateLayout is the on-disk and CLI date format.
const DateLayout = "2006-01-02"

// Position describes a straddle-style trade: one call and one put on the
// same strike and expiration, with a stock hedge sized by EffectiveDelta.
type Position struct {
	ID              int64
	TradeDate       time.Time
	Symbol          string
	Strike          float64
	Expiration      time.Time
	StockTradePrice float64
	EffectiveDelta  float64
	CallTradePrice  float64
	CallAction      Action
	CallQty         int
	PutTradePrice   float64
	PutAction       Action
	PutQty          int
}

// Actions returns the position's (call, put) opening actions.
func (p Position) Actions() ActionPair {
	return ActionPair{Call: p.CallAction, Put: p.PutAction}
}

// Investment is the premium outlay of the position in currency.
func (p Position) Investment() float64 {
	return (float64(p.CallQty)*p.CallTradePrice + float64(p.PutQty)*p.PutTradePrice) * ContractMultiplier
}

// KeyOn returns the natural key of this position's row for date.
func (p Position) KeyOn(date time.Time) TradeKey {
	return TradeKey{
		TradeDate:  Day(date),
		Symbol:     p.Symbol,
		Strike:     p.Strike,
		Expiration: Day(p.Expiration),
		CallAction: p.CallAction,
		PutAction:  p.PutAction,
		CallQty:    p.CallQty,
		PutQty:     p.PutQty,
	}
}

// TradeKey uniquely identifies one position-day.
type TradeKey struct {
	TradeDate  time.Time
	Symbol     string
	Strike     float64
	Expiration time.Time
	CallAction Action
	PutAction  Action
	CallQty    int
	PutQty     int
}

// TradeRecord is one reconciled position-day.
type TradeRecord struct {
	TradeDate       time.Time `json:"trade_date"`
	Symbol          string    `json:"symbol"`
	Strike          float64   `json:"strike"`
	Expiration      time.Time `json:"expiration"`
	StockTradePrice float64   `json:"stock_trade_price"`
	EffectiveDelta  float64   `json:"effective_delta"`
	CallTradePrice  float64   `json:"call_trade_price"`
	CallAction      Action    `json:"call_action"`
	CallQty         int       `json:"call_qty"`
	PutTradePrice   float64   `json:"put_trade_price"`
	PutAction       Action    `json:"put_action"`
	PutQty          int       `json:"put_qty"`
	StockClosePrice float64   `json:"stock_close_price"`
	CallClosePrice  float64   `json:"call_close_price"`
	PutClosePrice   float64   `json:"put_close_price"`
	DailyPnL        float64   `json:"daily_pnl"`
	PctChange       NullFloat `json:"pct_change"`
}

// Key returns the record's natural key.
func (r TradeRecord) Key() TradeKey {
	return r.Position().KeyOn(r.TradeDate)
}

// Position returns the trade parameters the record was computed from.
// TradeDate is the row date, not the entry date.
func (r TradeRecord) Position() Position {
	return Position{
		TradeDate:       r.TradeDate,
		Symbol:          r.Symbol,
		Strike:          r.Strike,
		Expiration:      r.Expiration,
		StockTradePrice: r.StockTradePrice,
		EffectiveDelta:  r.EffectiveDelta,
		CallTradePrice:  r.CallTradePrice,
		CallAction:      r.CallAction,
		CallQty:         r.CallQty,
		PutTradePrice:   r.PutTradePrice,
		PutAction:       r.PutAction,
		PutQty:          r.PutQty,
	}
}

// TimeSeriesPoint is one merged row of the call, put and stock closes.
type TimeSeriesPoint struct {
	Date       time.Time
	CallClose  NullFloat
	PutClose   NullFloat
	StockClose NullFloat
}

// Complete reports whether all three prices are present.
func (p TimeSeriesPoint) Complete() bool {
	return p.CallClose.Valid && p.PutClose.Valid && p.StockClose.Valid
}

// Valuation is a model-vs-market snapshot for one strike.
type Valuation struct {
	Symbol     string    `json:"symbol"`
	Date       time.Time `json:"date"`
	Expiration time.Time `json:"expiration"`
	Strike     float64   `json:"strike"`
	StockPrice float64   `json:"stock_price"`
	Volatility float64   `json:"volatility"`
	Call       LegValue  `json:"call"`
	Put        LegValue  `json:"put"`
}

// LegValue is the valuation of one side of a Valuation.
type LegValue struct {
	Premium    NullFloat `json:"premium"`
	Bid        NullFloat `json:"bid"`
	Ask        NullFloat `json:"ask"`
	ModelPrice float64   `json:"model_price"`
	Delta      float64   `json:"delta"`
	ImpliedVol NullFloat `json:"implied_vol"`
	Verdict    Verdict   `json:"verdict"`
}

// Verdict classifies a model price against the quoted spread.
type Verdict string

const (
	VerdictRich    Verdict = "rich"  // model above ask
	VerdictCheap   Verdict = "cheap" // model below bid
	VerdictFair    Verdict = "fair"
	VerdictUnknown Verdict = "unknown"
)

// Day truncates t to its calendar date in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD date.
func ParseDay(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
