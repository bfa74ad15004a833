// Package calendar tags dates with calendar-position and event features:
// weekday, ISO week, weekend, month boundaries, season, moving religious
// holidays resolved from tabulated Gregorian ranges, fixed national holidays
// and retail campaigns.
package calendar

import (
	"errors"
	"fmt"
	"time"

	"github.com/rickar/cal/v2"

	"storecast/internal/frame"
)

// Default output column names.
const (
	ColDayOfWeek         = "day_of_week"
	ColWeekOfYear        = "week_of_year"
	ColMonth             = "month"
	ColIsWeekend         = "is_weekend"
	ColIsStartOfMonth    = "is_start_of_month"
	ColIsEndOfMonth      = "is_end_of_month"
	ColIsRamadan         = "is_ramadan"
	ColIsEidFitr         = "is_eid_fitr"
	ColIsEidAdha         = "is_eid_adha"
	ColIsGreatLent       = "is_great_lent"
	ColIsAdventFast      = "is_advent_fast"
	ColIsExamPeriod      = "is_exam_period"
	ColIsNationalHoliday = "is_national_holiday"
	ColSeason            = "season"
	ColRetailEvent       = "retail_event"
)

// Builder derives calendar features from a date column. It holds only
// immutable tables and is safe for concurrent use.
type Builder struct {
	tables   map[Holiday]*IntervalTable
	national []*cal.Holiday
	span     YearSpan
}

// NewBuilder resolves every holiday in Holidays over span. A holiday the
// resolver does not know gets an empty table and is never tagged.
func NewBuilder(r Resolver, span YearSpan, national []NationalHoliday) (*Builder, error) {
	b := &Builder{
		tables:   make(map[Holiday]*IntervalTable, len(Holidays)),
		national: fixedHolidays(national),
		span:     span,
	}
	for _, h := range Holidays {
		ranges, err := r.RangesFor(h, span)
		if err != nil && !errors.Is(err, ErrUnknownHoliday) {
			return nil, fmt.Errorf("resolving %s: %w", h, err)
		}
		t, err := NewIntervalTable(ranges)
		if err != nil {
			return nil, fmt.Errorf("building %s table: %w", h, err)
		}
		b.tables[h] = t
	}
	return b, nil
}

// FromCalendar builds a Builder over c with a StaticResolver.
func FromCalendar(c *Calendar, span YearSpan) (*Builder, error) {
	r := NewStaticResolver(c)
	return NewBuilder(r, span, r.National())
}

// Open builds a Builder over the calendar file at path, or over the embedded
// calendar when path is empty.
func Open(path string, span YearSpan) (*Builder, error) {
	var (
		c   *Calendar
		err error
	)
	if path == "" {
		c, err = DefaultCalendar()
	} else {
		c, err = LoadCalendar(path)
	}
	if err != nil {
		return nil, err
	}
	return FromCalendar(c, span)
}

// DefaultBuilder builds a Builder over the embedded calendar and DefaultSpan.
func DefaultBuilder() (*Builder, error) {
	c, err := DefaultCalendar()
	if err != nil {
		return nil, err
	}
	return FromCalendar(c, DefaultSpan)
}

// Table returns the interval table of h.
func (b *Builder) Table(h Holiday) *IntervalTable {
	return b.tables[h]
}

// Span returns the year span the tables were resolved for.
func (b *Builder) Span() YearSpan { return b.span }

// In reports whether d falls inside any range of h.
func (b *Builder) In(h Holiday, d time.Time) bool {
	return b.tables[h].Contains(d)
}

// NationalHoliday reports whether d is a fixed national holiday.
func (b *Builder) NationalHoliday(d time.Time) bool {
	return onHoliday(b.national, d)
}

// Tags is every calendar feature for a single date.
type Tags struct {
	Date              time.Time
	DayOfWeek         string
	WeekOfYear        int
	Month             int
	IsWeekend         bool
	IsStartOfMonth    bool
	IsEndOfMonth      bool
	IsRamadan         bool
	IsEidFitr         bool
	IsEidAdha         bool
	IsGreatLent       bool
	IsAdventFast      bool
	IsExamPeriod      bool
	IsNationalHoliday bool
	Season            string
	RetailEvent       string
}

// Tag computes every feature for d.
func (b *Builder) Tag(d time.Time) Tags {
	d = frame.DateOf(d)
	_, week := d.ISOWeek()
	return Tags{
		Date:              d,
		DayOfWeek:         d.Weekday().String(),
		WeekOfYear:        week,
		Month:             int(d.Month()),
		IsWeekend:         Weekend(d),
		IsStartOfMonth:    StartOfMonth(d),
		IsEndOfMonth:      EndOfMonth(d),
		IsRamadan:         b.In(Ramadan, d),
		IsEidFitr:         b.In(EidFitr, d),
		IsEidAdha:         b.In(EidAdha, d),
		IsGreatLent:       b.In(GreatLent, d),
		IsAdventFast:      b.In(AdventFast, d),
		IsExamPeriod:      b.In(ExamPeriod, d),
		IsNationalHoliday: b.NationalHoliday(d),
		Season:            SeasonOf(d.Month()),
		RetailEvent:       RetailEventOf(d),
	}
}

// ---------------------------------------------------------------------------
// Frame operations
// ---------------------------------------------------------------------------

func boolCol(v []bool) frame.Column     { return frame.Bools(v) }
func intCol(v []int) frame.Column       { return frame.Ints(v) }
func stringCol(v []string) frame.Column { return frame.Strings(v) }

// derive appends newCol = fn(date) for every row of dateCol.
func derive[T any](f *frame.Frame, dateCol, newCol string, fn func(time.Time) T, mk func([]T) frame.Column) (*frame.Frame, error) {
	dates, err := f.Dates(dateCol)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(dates))
	for i, d := range dates {
		out[i] = fn(frame.DateOf(d))
	}
	return f.With(newCol, mk(out))
}

// DayOfWeek appends the weekday name, Monday through Sunday.
func (b *Builder) DayOfWeek(f *frame.Frame, dateCol, newCol string) (*frame.Frame, error) {
	return derive(f, dateCol, newCol, func(d time.Time) string { return d.Weekday().String() }, stringCol)
}

// WeekOfYear appends the ISO-8601 week number.
func (b *Builder) WeekOfYear(f *frame.Frame, dateCol, newCol string) (*frame.Frame, error) {
	return derive(f, dateCol, newCol, func(d time.Time) int {
		_, w := d.ISOWeek()
		return w
	}, intCol)
}

// Month appends the month number, 1 through 12.
func (b *Builder) Month(f *frame.Frame, dateCol, newCol string) (*frame.Frame, error) {
	return derive(f, dateCol, newCol, func(d time.Time) int { return int(d.Month()) }, intCol)
}

// IsWeekend appends true for Fridays and Saturdays.
func (b *Builder) IsWeekend(f *frame.Frame, dateCol, newCol string) (*frame.Frame, error) {
	return derive(f, dateCol, newCol, Weekend, boolCol)
}

// IsStartOfMonth appends true on the first day of a month.
func (b *Builder) IsStartOfMonth(f *frame.Frame, dateCol, newCol string) (*frame.Frame, error) {
	return derive(f, dateCol, newCol, StartOfMonth, boolCol)
}

// IsEndOfMonth appends true on the last day of a month.
func (b *Builder) IsEndOfMonth(f *frame.Frame, dateCol, newCol string) (*frame.Frame, error) {
	return derive(f, dateCol, newCol, EndOfMonth, boolCol)
}

// IsHoliday appends membership of h's interval table.
func (b *Builder) IsHoliday(h Holiday, f *frame.Frame, dateCol, newCol string) (*frame.Frame, error) {
	t := b.tables[h]
	return derive(f, dateCol, newCol, t.Contains, boolCol)
}

func (b *Builder) IsRamadan(f *frame.Frame, dateCol, newCol string) (*frame.Frame, error) {
	return b.IsHoliday(Ramadan, f, dateCol, newCol)
}

func (b *Builder) IsEidFitr(f *frame.Frame, dateCol, newCol string) (*frame.Frame, error) {
	return b.IsHoliday(EidFitr, f, dateCol, newCol)
}

func (b *Builder) IsEidAdha(f *frame.Frame, dateCol, newCol string) (*frame.Frame, error) {
	return b.IsHoliday(EidAdha, f, dateCol, newCol)
}

func (b *Builder) IsGreatLent(f *frame.Frame, dateCol, newCol string) (*frame.Frame, error) {
	return b.IsHoliday(GreatLent, f, dateCol, newCol)
}

func (b *Builder) IsAdventFast(f *frame.Frame, dateCol, newCol string) (*frame.Frame, error) {
	return b.IsHoliday(AdventFast, f, dateCol, newCol)
}

func (b *Builder) IsExamPeriod(f *frame.Frame, dateCol, newCol string) (*frame.Frame, error) {
	return b.IsHoliday(ExamPeriod, f, dateCol, newCol)
}

// IsNationalHoliday appends true on fixed-date national holidays.
func (b *Builder) IsNationalHoliday(f *frame.Frame, dateCol, newCol string) (*frame.Frame, error) {
	return derive(f, dateCol, newCol, b.NationalHoliday, boolCol)
}

// Season appends the meteorological season.
func (b *Builder) Season(f *frame.Frame, dateCol, newCol string) (*frame.Frame, error) {
	return derive(f, dateCol, newCol, func(d time.Time) string { return SeasonOf(d.Month()) }, stringCol)
}

// RetailEvent appends the retail campaign label.
func (b *Builder) RetailEvent(f *frame.Frame, dateCol, newCol string) (*frame.Frame, error) {
	return derive(f, dateCol, newCol, RetailEventOf, stringCol)
}

// Feature is one entry of the calendar catalogue.
type Feature struct {
	Name  string
	Apply func(f *frame.Frame, dateCol, newCol string) (*frame.Frame, error)
}

// Features returns the catalogue in output order under default names.
func (b *Builder) Features() []Feature {
	return []Feature{
		{ColDayOfWeek, b.DayOfWeek},
		{ColWeekOfYear, b.WeekOfYear},
		{ColMonth, b.Month},
		{ColIsWeekend, b.IsWeekend},
		{ColIsStartOfMonth, b.IsStartOfMonth},
		{ColIsEndOfMonth, b.IsEndOfMonth},
		{ColIsRamadan, b.IsRamadan},
		{ColIsEidFitr, b.IsEidFitr},
		{ColIsEidAdha, b.IsEidAdha},
		{ColIsGreatLent, b.IsGreatLent},
		{ColIsAdventFast, b.IsAdventFast},
		{ColIsExamPeriod, b.IsExamPeriod},
		{ColIsNationalHoliday, b.IsNationalHoliday},
		{ColSeason, b.Season},
		{ColRetailEvent, b.RetailEvent},
	}
}

// AddAll appends the whole catalogue, stopping at the first error.
func (b *Builder) AddAll(f *frame.Frame, dateCol string) (*frame.Frame, error) {
	for _, feat := range b.Features() {
		var err error
		if f, err = feat.Apply(f, dateCol, feat.Name); err != nil {
			return nil, fmt.Errorf("%s: %w", feat.Name, err)
		}
	}
	return f, nil
}
