package calendar

import "time"

// HolidayName returns the NYSE full-day closure falling on date, if any.
// Fixed-date holidays on a weekend are observed on the adjacent weekday,
// except New Year's Day on a Saturday, which is not observed.
func HolidayName(date time.Time) (string, bool) {
	y, m, d := date.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	for _, h := range holidaysIn(y) {
		if h.date.Equal(day) {
			return h.name, true
		}
	}
	return "", false
}

type holiday struct {
	name string
	date time.Time
}

func holidaysIn(year int) []holiday {
	hs := []holiday{
		{"New Year's Day", newYear(year)},
		{"Martin Luther King Jr. Day", nthWeekday(year, time.January, time.Monday, 3)},
		{"Washington's Birthday", nthWeekday(year, time.February, time.Monday, 3)},
		{"Good Friday", easter(year).AddDate(0, 0, -2)},
		{"Memorial Day", lastWeekday(year, time.May, time.Monday)},
		{"Independence Day", observed(date(year, time.July, 4))},
		{"Labor Day", nthWeekday(year, time.September, time.Monday, 1)},
		{"Thanksgiving Day", nthWeekday(year, time.November, time.Thursday, 4)},
		{"Christmas Day", observed(date(year, time.December, 25))},
	}
	if year >= 2022 {
		hs = append(hs, holiday{"Juneteenth", observed(date(year, time.June, 19))})
	}
	return hs
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newYear(year int) time.Time {
	d := date(year, time.January, 1)
	if d.Weekday() == time.Sunday {
		return d.AddDate(0, 0, 1)
	}
	// Saturday: no weekday closure
	return d
}

// observed shifts Saturday to Friday and Sunday to Monday.
func observed(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	}
	return d
}

func nthWeekday(year int, month time.Month, wd time.Weekday, n int) time.Time {
	d := date(year, month, 1)
	offset := (int(wd) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset+7*(n-1))
}

func lastWeekday(year int, month time.Month, wd time.Weekday) time.Time {
	d := date(year, month+1, 1).AddDate(0, 0, -1)
	offset := (int(d.Weekday()) - int(wd) + 7) % 7
	return d.AddDate(0, 0, -offset)
}

// easter returns Easter Sunday (anonymous Gregorian algorithm).
func easter(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return date(year, time.Month(month), day)
}
