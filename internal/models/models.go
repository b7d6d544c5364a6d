// Package models provides domain models for the options analytics engine.
package models

import (
	"time"
)

// MarketStatus represents the current market status.
type MarketStatus string

const (
	MarketOpen    MarketStatus = "OPEN"
	MarketClosed  MarketStatus = "CLOSED"
	MarketHoliday MarketStatus = "HOLIDAY"
)

// Close is one daily closing price.
type Close struct {
	Date  time.Time
	Close float64
}

// StockQuote is a live underlying quote.
type StockQuote struct {
	Symbol    string
	Price     NullFloat
	Change    NullFloat
	PctChange NullFloat
	Timestamp time.Time
}

// OptionQuote is a live option contract quote.
type OptionQuote struct {
	ContractID   string
	Last         NullFloat
	Bid          NullFloat
	Ask          NullFloat
	OpenInterest int64
	Volume       int64
	Timestamp    time.Time
}

// ExitPrice returns the price the leg would be closed at by action:
// selling hits the bid, buying lifts the ask, falling back to the last
// trade when the side is unavailable.
func (q OptionQuote) ExitPrice(closing Action) NullFloat {
	side := q.Ask
	if closing == Sell {
		side = q.Bid
	}
	if side.Valid && side.Float64 > 0 {
		return side
	}
	return q.Last
}

// LiveQuote is the same-day quote spliced onto a historical series.
type LiveQuote struct {
	Call  OptionQuote
	Put   OptionQuote
	Stock NullFloat
}
