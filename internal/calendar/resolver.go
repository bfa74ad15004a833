package calendar

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

// Holiday names a family of dated events backed by one IntervalTable.
type Holiday string

const (
	Ramadan    Holiday = "ramadan"
	EidFitr    Holiday = "eid_fitr"
	EidAdha    Holiday = "eid_adha"
	GreatLent  Holiday = "great_lent"
	AdventFast Holiday = "advent_fast"
	ExamPeriod Holiday = "exam_period"
)

// Holidays lists every holiday the feature builder tags.
var Holidays = []Holiday{Ramadan, EidFitr, EidAdha, GreatLent, AdventFast, ExamPeriod}

// ErrUnknownHoliday is returned by a Resolver that has no data for a holiday.
var ErrUnknownHoliday = errors.New("unknown holiday")

// YearSpan is an inclusive range of calendar years.
type YearSpan struct {
	From int
	To   int
}

// DefaultSpan is the span covered by the embedded calendar.
var DefaultSpan = YearSpan{From: 2020, To: 2035}

func (s YearSpan) start() time.Time { return time.Date(s.From, 1, 1, 0, 0, 0, 0, time.UTC) }
func (s YearSpan) end() time.Time   { return time.Date(s.To, 12, 31, 0, 0, 0, 0, time.UTC) }

// Resolver supplies the Gregorian ranges of a holiday within a year span.
// Swapping the resolver is how the tabulated horizon is extended.
type Resolver interface {
	RangesFor(h Holiday, span YearSpan) ([]Range, error)
}

// ---------------------------------------------------------------------------
// Calendar document
// ---------------------------------------------------------------------------

// Calendar is the on-disk calendar document.
type Calendar struct {
	Name     string                  `yaml:"name"`
	Holidays map[Holiday]HolidaySpec `yaml:"holidays"`
	National []NationalHoliday       `yaml:"national_holidays"`
}

// HolidaySpec lists explicit ranges and recurring month-day rules.
type HolidaySpec struct {
	Ranges    []RangeSpec     `yaml:"ranges"`
	Recurring []RecurringSpec `yaml:"recurring"`
}

// RangeSpec is an explicit inclusive range, dates as YYYY-MM-DD.
type RangeSpec struct {
	Start  string `yaml:"start"`
	End    string `yaml:"end"`
	Label  string `yaml:"label"`
	Anchor int    `yaml:"anchor"`
}

// RecurringSpec repeats every year, dates as MM-DD. When End precedes Start
// the range ends in the following year.
type RecurringSpec struct {
	Label string `yaml:"label"`
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// NationalHoliday is a fixed-date holiday valid in every year.
type NationalHoliday struct {
	Month int    `yaml:"month"`
	Day   int    `yaml:"day"`
	Name  string `yaml:"name"`
}

//go:embed data/egypt.yaml
var egyptYAML []byte

// DefaultCalendar parses the embedded Egyptian calendar.
func DefaultCalendar() (*Calendar, error) {
	return ParseCalendar(egyptYAML)
}

// LoadCalendar reads a calendar document from path.
func LoadCalendar(path string) (*Calendar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCalendar(data)
}

// ParseCalendar decodes and validates a calendar document.
func ParseCalendar(data []byte) (*Calendar, error) {
	c := &Calendar{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing calendar: %w", err)
	}
	for _, n := range c.National {
		if n.Month < 1 || n.Month > 12 || n.Day < 1 || n.Day > 31 {
			return nil, fmt.Errorf("calendar %s: invalid national holiday %q (%d-%d)", c.Name, n.Name, n.Month, n.Day)
		}
	}
	for h, spec := range c.Holidays {
		for _, r := range spec.Ranges {
			if _, err := r.toRange(h); err != nil {
				return nil, fmt.Errorf("calendar %s: %w", c.Name, err)
			}
		}
		for _, r := range spec.Recurring {
			if _, _, err := r.monthDays(); err != nil {
				return nil, fmt.Errorf("calendar %s: %s: %w", c.Name, h, err)
			}
		}
	}
	return c, nil
}

func (r RangeSpec) toRange(h Holiday) (Range, error) {
	start, err := time.Parse(dateLayout, r.Start)
	if err != nil {
		return Range{}, fmt.Errorf("%s: start: %w", h, err)
	}
	end, err := time.Parse(dateLayout, r.End)
	if err != nil {
		return Range{}, fmt.Errorf("%s: end: %w", h, err)
	}
	label := r.Label
	if label == "" {
		label = string(h)
	}
	return Range{Start: start, End: end, Label: label, Anchor: r.Anchor}, nil
}

type monthDay struct {
	month time.Month
	day   int
}

func (r RecurringSpec) monthDays() (start, end monthDay, err error) {
	parse := func(s string) (monthDay, error) {
		// 2000 is a leap year, so 02-29 parses.
		t, err := time.Parse(dateLayout, "2000-"+s)
		if err != nil {
			return monthDay{}, fmt.Errorf("recurring %q: %w", s, err)
		}
		return monthDay{t.Month(), t.Day()}, nil
	}
	if start, err = parse(r.Start); err != nil {
		return
	}
	end, err = parse(r.End)
	return
}

// ---------------------------------------------------------------------------
// StaticResolver
// ---------------------------------------------------------------------------

// StaticResolver resolves holidays from a Calendar document.
type StaticResolver struct {
	cal *Calendar
}

// NewStaticResolver wraps c. The calendar must not be modified afterwards.
func NewStaticResolver(c *Calendar) *StaticResolver {
	return &StaticResolver{cal: c}
}

// RangesFor returns the ranges of h that intersect span. Recurring rules are
// expanded from the year before span.From so that wrapping ranges reaching
// into the span are included.
func (s *StaticResolver) RangesFor(h Holiday, span YearSpan) ([]Range, error) {
	spec, ok := s.cal.Holidays[h]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHoliday, h)
	}
	lo, hi := span.start(), span.end()
	overlaps := func(r Range) bool {
		return !r.End.Before(lo) && !r.Start.After(hi)
	}

	var out []Range
	for _, rs := range spec.Ranges {
		r, err := rs.toRange(h)
		if err != nil {
			return nil, err
		}
		if overlaps(r) {
			out = append(out, r)
		}
	}

	for _, rec := range spec.Recurring {
		start, end, err := rec.monthDays()
		if err != nil {
			return nil, err
		}
		label := rec.Label
		if label == "" {
			label = string(h)
		}
		for y := span.From - 1; y <= span.To; y++ {
			endYear := y
			if end.month < start.month || (end.month == start.month && end.day < start.day) {
				endYear++
			}
			r := Range{
				Start:  time.Date(y, start.month, start.day, 0, 0, 0, 0, time.UTC),
				End:    time.Date(endYear, end.month, end.day, 0, 0, 0, 0, time.UTC),
				Label:  label,
				Anchor: y,
			}
			if overlaps(r) {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

// National returns the calendar's fixed-date holidays.
func (s *StaticResolver) National() []NationalHoliday {
	out := make([]NationalHoliday, len(s.cal.National))
	copy(out, s.cal.National)
	return out
}
