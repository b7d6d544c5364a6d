package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionlab/internal/config"
	"optionlab/internal/models"
)

func day(s string) time.Time {
	d, err := models.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestHolidayRules(t *testing.T) {
	tests := []struct {
		date string
		name string
	}{
		{"2024-01-01", "New Year's Day"},
		{"2024-01-15", "Martin Luther King Jr. Day"},
		{"2024-02-19", "Washington's Birthday"},
		{"2024-03-29", "Good Friday"},
		{"2024-05-27", "Memorial Day"},
		{"2024-06-19", "Juneteenth"},
		{"2024-07-04", "Independence Day"},
		{"2024-09-02", "Labor Day"},
		{"2024-11-28", "Thanksgiving Day"},
		{"2024-12-25", "Christmas Day"},
		{"2025-04-18", "Good Friday"},
		{"2023-01-02", "New Year's Day"},   // Sunday observed Monday
		{"2026-07-03", "Independence Day"}, // Saturday observed Friday
		{"2022-12-26", "Christmas Day"},    // Sunday observed Monday
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			name, ok := HolidayName(day(tt.date))
			require.True(t, ok)
			assert.Equal(t, tt.name, name)
		})
	}
}

func TestNotHolidays(t *testing.T) {
	for _, d := range []string{"2024-03-28", "2024-07-05", "2021-12-31", "2021-06-18"} {
		_, ok := HolidayName(day(d))
		assert.False(t, ok, d)
	}
}

func TestTradingDays(t *testing.T) {
	s := NewUS()

	// Thu 2024-03-28 .. Tue 2024-04-02 spans Good Friday and a weekend.
	days := s.TradingDays(day("2024-03-28"), day("2024-04-02"))
	require.Len(t, days, 3)
	assert.Equal(t, day("2024-03-28"), days[0])
	assert.Equal(t, day("2024-04-01"), days[1])
	assert.Equal(t, day("2024-04-02"), days[2])

	assert.Empty(t, s.TradingDays(day("2024-04-02"), day("2024-04-01")))
}

func TestExtraHolidays(t *testing.T) {
	s, err := New(config.CalendarConfig{
		Timezone:      "America/New_York",
		ExtraHolidays: []string{"2025-01-09"},
		Open:          "09:30",
		Close:         "16:00",
	})
	require.NoError(t, err)
	assert.False(t, s.IsTradingDay(day("2025-01-09")))
	assert.True(t, s.IsTradingDay(day("2025-01-08")))
}

func TestSessionStatus(t *testing.T) {
	s := NewUS()
	ny := s.Location()

	assert.True(t, s.IsOpen(time.Date(2024, 4, 2, 9, 30, 0, 0, ny)))
	assert.True(t, s.IsOpen(time.Date(2024, 4, 2, 15, 59, 0, 0, ny)))
	assert.False(t, s.IsOpen(time.Date(2024, 4, 2, 16, 0, 0, 0, ny)))
	assert.False(t, s.IsOpen(time.Date(2024, 4, 2, 9, 29, 0, 0, ny)))
	assert.Equal(t, models.MarketHoliday, s.Status(time.Date(2024, 3, 29, 11, 0, 0, 0, ny)))
	assert.Equal(t, models.MarketClosed, s.Status(time.Date(2024, 3, 30, 11, 0, 0, 0, ny)))

	// 14:00 UTC is 10:00 in New York during daylight saving.
	assert.True(t, s.IsOpen(time.Date(2024, 4, 2, 14, 0, 0, 0, time.UTC)))
}

func TestNextOpen(t *testing.T) {
	s := NewUS()
	ny := s.Location()

	next := s.NextOpen(time.Date(2024, 3, 28, 17, 0, 0, 0, ny))
	assert.Equal(t, time.Date(2024, 4, 1, 9, 30, 0, 0, ny), next)

	next = s.NextOpen(time.Date(2024, 4, 2, 8, 0, 0, 0, ny))
	assert.Equal(t, time.Date(2024, 4, 2, 9, 30, 0, 0, ny), next)
}

func TestNewRejectsInvertedSession(t *testing.T) {
	_, err := New(config.CalendarConfig{Timezone: "UTC", Open: "16:00", Close: "09:30"})
	assert.Error(t, err)
}
