// Package calendar provides the US equity trading calendar and session hours.
package calendar

import (
	"fmt"
	"time"

	"optionlab/internal/config"
	"optionlab/internal/models"
)

// Calendar decides which dates carry a daily close.
type Calendar interface {
	IsTradingDay(date time.Time) bool
}

// Session is the regular-hours session of a US equity exchange: NYSE holiday
// rules plus configured extra closures, with an intraday open/close window.
type Session struct {
	location *time.Location
	open     int // minutes from midnight
	close    int
	extra    map[string]bool // YYYY-MM-DD -> closed
}

// New builds a session from configuration.
func New(cfg config.CalendarConfig) (*Session, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", cfg.Timezone, err)
	}
	open, err := parseClock(cfg.Open)
	if err != nil {
		return nil, err
	}
	closeAt, err := parseClock(cfg.Close)
	if err != nil {
		return nil, err
	}
	if closeAt <= open {
		return nil, fmt.Errorf("session close %s is not after open %s", cfg.Close, cfg.Open)
	}

	s := &Session{
		location: loc,
		open:     open,
		close:    closeAt,
		extra:    make(map[string]bool),
	}
	for _, d := range cfg.ExtraHolidays {
		date, err := models.ParseDay(d)
		if err != nil {
			return nil, fmt.Errorf("parsing holiday %q: %w", d, err)
		}
		s.AddHoliday(date)
	}
	return s, nil
}

// NewUS returns the New York session, 09:30 to 16:00.
func NewUS() *Session {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("EST", -5*60*60)
	}
	return &Session{
		location: loc,
		open:     9*60 + 30,
		close:    16 * 60,
		extra:    make(map[string]bool),
	}
}

func parseClock(hm string) (int, error) {
	t, err := time.Parse("15:04", hm)
	if err != nil {
		return 0, fmt.Errorf("parsing session time %q: %w", hm, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Location returns the exchange timezone.
func (s *Session) Location() *time.Location {
	return s.location
}

// AddHoliday adds a market closure.
func (s *Session) AddHoliday(date time.Time) {
	s.extra[date.Format(models.DateLayout)] = true
}

// IsHoliday reports whether the calendar date of date is an exchange holiday.
func (s *Session) IsHoliday(date time.Time) bool {
	if s.extra[date.Format(models.DateLayout)] {
		return true
	}
	_, ok := HolidayName(date)
	return ok
}

// IsTradingDay reports whether date is a weekday that is not a holiday.
func (s *Session) IsTradingDay(date time.Time) bool {
	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !s.IsHoliday(date)
}

// TradingDays lists trading dates from..to inclusive, as UTC dates.
func (s *Session) TradingDays(from, to time.Time) []time.Time {
	from, to = models.Day(from), models.Day(to)
	var days []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if s.IsTradingDay(d) {
			days = append(days, d)
		}
	}
	return days
}

// Today returns the exchange-local calendar date of now.
func (s *Session) Today(now time.Time) time.Time {
	return models.Day(now.In(s.location))
}

// Status returns the market status at t.
func (s *Session) Status(t time.Time) models.MarketStatus {
	local := t.In(s.location)
	day := models.Day(local)
	if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return models.MarketClosed
	}
	if s.IsHoliday(day) {
		return models.MarketHoliday
	}
	minutes := local.Hour()*60 + local.Minute()
	if minutes >= s.open && minutes < s.close {
		return models.MarketOpen
	}
	return models.MarketClosed
}

// IsOpen returns true if the regular session is open at t.
func (s *Session) IsOpen(t time.Time) bool {
	return s.Status(t) == models.MarketOpen
}

// NextOpen returns the next session open strictly after t.
func (s *Session) NextOpen(t time.Time) time.Time {
	local := t.In(s.location)
	y, m, d := local.Date()
	next := time.Date(y, m, d, s.open/60, s.open%60, 0, 0, s.location)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	for !s.IsTradingDay(models.Day(next)) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Close returns the session close on the calendar date of t.
func (s *Session) Close(t time.Time) time.Time {
	y, m, d := t.In(s.location).Date()
	return time.Date(y, m, d, s.close/60, s.close%60, 0, 0, s.location)
}
