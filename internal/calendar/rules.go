package calendar

import (
	"time"

	"github.com/rickar/cal/v2"
)

// Seasons.
const (
	Winter = "winter"
	Spring = "spring"
	Summer = "summer"
	Autumn = "autumn"
)

// Retail events, in rule priority order.
const (
	EventChristmasDec    = "christmas_dec"
	EventCopticChristmas = "coptic_christmas"
	EventValentines      = "valentines"
	EventMothersDay      = "mothers_day"
	EventBlackFriday     = "black_friday"
	EventBackToSchool    = "back_to_school"
	EventNone            = "none"
)

// Weekend reports whether d is a Friday or Saturday (the Egyptian weekend).
func Weekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Friday || wd == time.Saturday
}

// StartOfMonth reports whether d is the first day of its month.
func StartOfMonth(d time.Time) bool {
	return d.Day() == 1
}

// EndOfMonth reports whether d is the last calendar day of its month.
func EndOfMonth(d time.Time) bool {
	return d.AddDate(0, 0, 1).Month() != d.Month()
}

// SeasonOf buckets a month into a meteorological season.
func SeasonOf(m time.Month) string {
	switch m {
	case time.December, time.January, time.February:
		return Winter
	case time.March, time.April, time.May:
		return Spring
	case time.June, time.July, time.August:
		return Summer
	default:
		return Autumn
	}
}

// RetailEventOf returns the single retail campaign active on d. Rules are
// evaluated in order and the first match wins; all of December is
// christmas_dec, so no later rule can fire in December.
func RetailEventOf(d time.Time) string {
	m, day := d.Month(), d.Day()
	switch {
	case m == time.December:
		return EventChristmasDec
	case m == time.January && day == 7:
		return EventCopticChristmas
	case m == time.February && day == 14:
		return EventValentines
	case m == time.March && day == 21:
		return EventMothersDay
	case m == time.November && d.Weekday() == time.Friday && d.AddDate(0, 0, 7).Month() != time.November:
		return EventBlackFriday
	case m == time.August && day >= 15:
		return EventBackToSchool
	}
	return EventNone
}

// fixedHolidays converts national holidays into cal holidays observed on
// their day of month.
func fixedHolidays(ns []NationalHoliday) []*cal.Holiday {
	out := make([]*cal.Holiday, 0, len(ns))
	for _, n := range ns {
		out = append(out, &cal.Holiday{
			Name:  n.Name,
			Type:  cal.ObservancePublic,
			Month: time.Month(n.Month),
			Day:   n.Day,
			Func:  cal.CalcDayOfMonth,
		})
	}
	return out
}

// onHoliday reports whether d is the actual date of any holiday in hs for
// d's year.
func onHoliday(hs []*cal.Holiday, d time.Time) bool {
	for _, h := range hs {
		actual, _ := h.Calc(d.Year())
		if actual.IsZero() {
			continue
		}
		if actual.Month() == d.Month() && actual.Day() == d.Day() {
			return true
		}
	}
	return false
}
