package calendar

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storecast/internal/frame"
)

func day(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func defaultBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := DefaultBuilder()
	require.NoError(t, err)
	return b
}

func dateFrame(t *testing.T, dates ...time.Time) *frame.Frame {
	t.Helper()
	f, err := frame.New([]string{"Date"}, []frame.Column{frame.Dates(dates)})
	require.NoError(t, err)
	return f
}

// ---------------------------------------------------------------------------
// IntervalTable
// ---------------------------------------------------------------------------

func TestIntervalTableSortsAndLooksUp(t *testing.T) {
	tbl, err := NewIntervalTable([]Range{
		{Start: day("2024-06-01"), End: day("2024-06-10"), Label: "b"},
		{Start: day("2024-01-01"), End: day("2024-01-05"), Label: "a"},
		{Start: day("2024-12-28"), End: day("2025-01-03"), Label: "c", Anchor: 2024},
	})
	require.NoError(t, err)
	require.Equal(t, 3, tbl.Len())

	labels := []string{}
	for _, r := range tbl.Ranges() {
		labels = append(labels, r.Label)
	}
	assert.Equal(t, []string{"a", "b", "c"}, labels)

	cases := []struct {
		date string
		want bool
	}{
		{"2023-12-31", false},
		{"2024-01-01", true},
		{"2024-01-05", true},
		{"2024-01-06", false},
		{"2024-06-05", true},
		{"2024-06-11", false},
		{"2025-01-02", true},
		{"2025-01-04", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tbl.Contains(day(tc.date)), tc.date)
	}

	anchor, ok := tbl.ContainsWithAnchor(day("2025-01-02"))
	require.True(t, ok)
	assert.Equal(t, 2024, anchor)

	anchor, ok = tbl.ContainsWithAnchor(day("2024-06-03"))
	require.True(t, ok)
	assert.Equal(t, 2024, anchor, "anchor defaults to the start year")

	first, last := tbl.Span()
	assert.Equal(t, day("2024-01-01"), first)
	assert.Equal(t, day("2025-01-03"), last)
}

func TestIntervalTableIgnoresTimeOfDay(t *testing.T) {
	tbl, err := NewIntervalTable([]Range{{Start: day("2024-03-10"), End: day("2024-04-09")}})
	require.NoError(t, err)
	assert.True(t, tbl.Contains(time.Date(2024, 4, 9, 23, 59, 0, 0, time.UTC)))
	assert.False(t, tbl.Contains(time.Date(2024, 4, 10, 0, 0, 1, 0, time.UTC)))
}

func TestIntervalTableValidation(t *testing.T) {
	_, err := NewIntervalTable([]Range{{Start: day("2024-02-01"), End: day("2024-01-01")}})
	assert.ErrorIs(t, err, ErrInvertedRange)

	_, err = NewIntervalTable([]Range{
		{Start: day("2024-01-01"), End: day("2024-01-10")},
		{Start: day("2024-01-10"), End: day("2024-01-20")},
	})
	assert.ErrorIs(t, err, ErrOverlappingRanges)

	tbl, err := NewIntervalTable([]Range{{Start: day("2024-01-01"), End: day("2024-01-01")}})
	require.NoError(t, err)
	assert.True(t, tbl.Contains(day("2024-01-01")))
}

func TestEmptyIntervalTable(t *testing.T) {
	tbl, err := NewIntervalTable(nil)
	require.NoError(t, err)
	assert.False(t, tbl.Contains(day("2024-01-01")))
	first, last := tbl.Span()
	assert.True(t, first.IsZero())
	assert.True(t, last.IsZero())

	var nilTable *IntervalTable
	assert.False(t, nilTable.Contains(day("2024-01-01")))
	assert.Zero(t, nilTable.Len())
}

// Every date of every tabulated range is contained, and nothing outside the
// tables' spans is.
func TestDefaultTablesMembership(t *testing.T) {
	b := defaultBuilder(t)
	for _, h := range []Holiday{Ramadan, EidFitr, EidAdha, GreatLent} {
		tbl := b.Table(h)
		require.NotZero(t, tbl.Len(), h)
		for _, r := range tbl.Ranges() {
			for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
				require.True(t, tbl.Contains(d), "%s %s", h, d.Format(dateLayout))
			}
			assert.False(t, tbl.Contains(r.Start.AddDate(0, 0, -1)), "%s before %s", h, r.Start.Format(dateLayout))
			assert.False(t, tbl.Contains(r.End.AddDate(0, 0, 1)), "%s after %s", h, r.End.Format(dateLayout))
		}
		first, last := tbl.Span()
		assert.False(t, tbl.Contains(first.AddDate(-1, 0, 0)), h)
		assert.False(t, tbl.Contains(last.AddDate(1, 0, 0)), h)
	}
}

// ---------------------------------------------------------------------------
// Resolver
// ---------------------------------------------------------------------------

func TestRecurringRulesWrapIntoNextYear(t *testing.T) {
	b := defaultBuilder(t)
	tbl := b.Table(AdventFast)

	anchor, ok := tbl.ContainsWithAnchor(day("2020-01-03"))
	require.True(t, ok)
	assert.Equal(t, 2019, anchor)

	anchor, ok = tbl.ContainsWithAnchor(day("2025-01-06"))
	require.True(t, ok)
	assert.Equal(t, 2024, anchor)

	assert.True(t, b.In(AdventFast, day("2024-11-25")))
	assert.False(t, b.In(AdventFast, day("2024-11-24")))
	assert.False(t, b.In(AdventFast, day("2025-01-07")))

	r, ok := b.Table(ExamPeriod).Lookup(day("2026-06-01"))
	require.True(t, ok)
	assert.Equal(t, "final_exams", r.Label)
	assert.True(t, b.In(ExamPeriod, day("2030-01-31")))
	assert.False(t, b.In(ExamPeriod, day("2030-02-01")))
}

func TestResolverFiltersToSpan(t *testing.T) {
	c, err := DefaultCalendar()
	require.NoError(t, err)
	r := NewStaticResolver(c)

	ranges, err := r.RangesFor(Ramadan, YearSpan{From: 2024, To: 2024})
	require.NoError(t, err)
	require.Len(t, ranges, 1)
	assert.Equal(t, day("2024-03-10"), ranges[0].Start)

	_, err = r.RangesFor(Holiday("diwali"), DefaultSpan)
	assert.ErrorIs(t, err, ErrUnknownHoliday)
}

func TestParseCalendarRejectsBadData(t *testing.T) {
	_, err := ParseCalendar([]byte(`
holidays:
  ramadan:
    ranges:
      - {start: "2024-13-01", end: "2024-04-09"}
`))
	assert.Error(t, err)

	_, err = ParseCalendar([]byte(`
national_holidays:
  - {month: 14, day: 1, name: nope}
`))
	assert.Error(t, err)

	_, err = ParseCalendar([]byte(`
holidays:
  advent_fast:
    recurring:
      - {start: "11-31", end: "01-06"}
`))
	assert.Error(t, err)
}

// A builder over an alternate calendar replaces the default tables.
func TestAlternateCalendar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: test
holidays:
  ramadan:
    ranges:
      - {start: "2024-05-01", end: "2024-05-03"}
national_holidays:
  - {month: 3, day: 3, name: Test Day}
`), 0o644))

	b, err := Open(path, DefaultSpan)
	require.NoError(t, err)

	assert.True(t, b.In(Ramadan, day("2024-05-01")))
	assert.False(t, b.In(Ramadan, day("2024-03-15")))
	assert.False(t, b.In(EidFitr, day("2024-04-10")), "unknown holidays get empty tables")
	assert.True(t, b.NationalHoliday(day("2031-03-03")))
	assert.False(t, b.NationalHoliday(day("2031-01-07")))
}

func TestOpen(t *testing.T) {
	b, err := Open("", YearSpan{From: 2024, To: 2024})
	require.NoError(t, err)
	assert.Equal(t, YearSpan{From: 2024, To: 2024}, b.Span())
	assert.True(t, b.In(Ramadan, day("2024-03-15")))

	_, err = Open(filepath.Join(t.TempDir(), "missing.yaml"), DefaultSpan)
	assert.Error(t, err)
}

type failingResolver struct{}

func (failingResolver) RangesFor(Holiday, YearSpan) ([]Range, error) {
	return nil, errors.New("backend down")
}

func TestNewBuilderPropagatesResolverErrors(t *testing.T) {
	_, err := NewBuilder(failingResolver{}, DefaultSpan, nil)
	assert.ErrorContains(t, err, "backend down")
}

// ---------------------------------------------------------------------------
// Builder
// ---------------------------------------------------------------------------

func TestRamadanScenario(t *testing.T) {
	b := defaultBuilder(t)
	f := dateFrame(t, day("2024-03-15"), day("2024-05-01"))

	out, err := b.IsRamadan(f, "Date", ColIsRamadan)
	require.NoError(t, err)
	got, err := out.Bools(ColIsRamadan)
	require.NoError(t, err)
	assert.Equal(t, frame.Bools{true, false}, got)
	assert.Equal(t, 1, f.Width(), "input frame is not modified")
}

func TestWeekendOverTenYears(t *testing.T) {
	b := defaultBuilder(t)
	var dates []time.Time
	for d := day("2020-01-01"); d.Before(day("2030-01-01")); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	out, err := b.IsWeekend(dateFrame(t, dates...), "Date", ColIsWeekend)
	require.NoError(t, err)
	got, err := out.Bools(ColIsWeekend)
	require.NoError(t, err)

	for i, d := range dates {
		want := d.Weekday() == time.Friday || d.Weekday() == time.Saturday
		require.Equal(t, want, got[i], d.Format(dateLayout))
	}
}

func TestDecemberIsAlwaysChristmas(t *testing.T) {
	for y := 2020; y <= 2035; y++ {
		for d := time.Date(y, 12, 1, 0, 0, 0, 0, time.UTC); d.Month() == time.December; d = d.AddDate(0, 0, 1) {
			require.Equal(t, EventChristmasDec, RetailEventOf(d), d.Format(dateLayout))
		}
	}
}

func TestRetailEvents(t *testing.T) {
	cases := map[string]string{
		"2024-01-07": EventCopticChristmas,
		"2024-02-14": EventValentines,
		"2024-03-21": EventMothersDay,
		"2024-11-29": EventBlackFriday,
		"2024-11-22": EventNone,
		"2023-11-24": EventBlackFriday,
		"2024-08-14": EventNone,
		"2024-08-15": EventBackToSchool,
		"2024-08-31": EventBackToSchool,
		"2024-09-01": EventNone,
	}
	for date, want := range cases {
		assert.Equal(t, want, RetailEventOf(day(date)), date)
	}
}

func TestTag(t *testing.T) {
	b := defaultBuilder(t)

	tags := b.Tag(time.Date(2024, 2, 29, 15, 30, 0, 0, time.UTC))
	assert.Equal(t, day("2024-02-29"), tags.Date)
	assert.Equal(t, "Thursday", tags.DayOfWeek)
	assert.Equal(t, 9, tags.WeekOfYear)
	assert.Equal(t, 2, tags.Month)
	assert.True(t, tags.IsEndOfMonth)
	assert.False(t, tags.IsWeekend)
	assert.Equal(t, Winter, tags.Season)
	assert.Equal(t, EventNone, tags.RetailEvent)

	tags = b.Tag(day("2025-01-07"))
	assert.True(t, tags.IsNationalHoliday)
	assert.True(t, tags.IsExamPeriod)
	assert.False(t, tags.IsAdventFast)
	assert.Equal(t, EventCopticChristmas, tags.RetailEvent)

	tags = b.Tag(day("2024-04-11"))
	assert.True(t, tags.IsEidFitr)
	assert.False(t, tags.IsRamadan)
	assert.True(t, tags.IsGreatLent)
}

func TestAddAllAppendsCatalogue(t *testing.T) {
	b := defaultBuilder(t)
	f := dateFrame(t, day("2023-12-31"), day("2024-01-01"), day("2024-03-15"))

	out, err := b.AddAll(f, "Date")
	require.NoError(t, err)
	assert.Equal(t, 1+len(b.Features()), out.Width())

	weeks, err := out.Ints(ColWeekOfYear)
	require.NoError(t, err)
	assert.Equal(t, frame.Ints{52, 1, 11}, weeks)

	starts, err := out.Bools(ColIsStartOfMonth)
	require.NoError(t, err)
	assert.Equal(t, frame.Bools{false, true, false}, starts)

	ends, err := out.Bools(ColIsEndOfMonth)
	require.NoError(t, err)
	assert.Equal(t, frame.Bools{true, false, false}, ends)

	seasons, err := out.Strings(ColSeason)
	require.NoError(t, err)
	assert.Equal(t, frame.Strings{Winter, Winter, Spring}, seasons)

	days, err := out.Strings(ColDayOfWeek)
	require.NoError(t, err)
	assert.Equal(t, frame.Strings{"Sunday", "Monday", "Friday"}, days)
}

func TestBuilderConfigurationErrors(t *testing.T) {
	b := defaultBuilder(t)
	f := dateFrame(t, day("2024-01-01"))

	_, err := b.Month(f, "Posting Date", ColMonth)
	var missing *frame.MissingColumnError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "Posting Date", missing.Name)

	_, err = b.Month(f, "Date", "Date")
	assert.ErrorIs(t, err, frame.ErrColumnExists)

	_, err = b.AddAll(f, "date")
	assert.ErrorIs(t, err, frame.ErrMissingColumn)
}
