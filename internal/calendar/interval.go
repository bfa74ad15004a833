package calendar

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"storecast/internal/frame"
)

var (
	// ErrInvertedRange is returned for a range whose end precedes its start.
	ErrInvertedRange = errors.New("range end before start")

	// ErrOverlappingRanges is returned when two ranges of one table overlap.
	ErrOverlappingRanges = errors.New("overlapping ranges")
)

// Range is a closed date interval [Start, End] carrying a label and the
// anchor year used by the Ramadan aggregate.
type Range struct {
	Start  time.Time
	End    time.Time
	Label  string
	Anchor int
}

// Contains reports whether d falls inside the range, on date precision.
func (r Range) Contains(d time.Time) bool {
	d = frame.DateOf(d)
	return !d.Before(r.Start) && !d.After(r.End)
}

// IntervalTable is an immutable, start-sorted list of non-overlapping
// ranges. It is safe for concurrent use.
type IntervalTable struct {
	ranges []Range
}

// NewIntervalTable validates and sorts ranges. Bounds are truncated to
// dates, and a zero Anchor defaults to the start year. The input slice is
// not retained.
func NewIntervalTable(ranges []Range) (*IntervalTable, error) {
	rs := make([]Range, len(ranges))
	for i, r := range ranges {
		r.Start = frame.DateOf(r.Start)
		r.End = frame.DateOf(r.End)
		if r.End.Before(r.Start) {
			return nil, fmt.Errorf("%w: %s..%s", ErrInvertedRange, r.Start.Format(dateLayout), r.End.Format(dateLayout))
		}
		if r.Anchor == 0 {
			r.Anchor = r.Start.Year()
		}
		rs[i] = r
	}

	sort.SliceStable(rs, func(i, j int) bool {
		return rs[i].Start.Before(rs[j].Start)
	})
	for i := 1; i < len(rs); i++ {
		if !rs[i].Start.After(rs[i-1].End) {
			return nil, fmt.Errorf("%w: %s..%s and %s..%s", ErrOverlappingRanges,
				rs[i-1].Start.Format(dateLayout), rs[i-1].End.Format(dateLayout),
				rs[i].Start.Format(dateLayout), rs[i].End.Format(dateLayout))
		}
	}
	return &IntervalTable{ranges: rs}, nil
}

// Lookup returns the range containing d: the one with the latest start on
// or before d, provided d does not pass its end.
func (t *IntervalTable) Lookup(d time.Time) (Range, bool) {
	if t == nil {
		return Range{}, false
	}
	d = frame.DateOf(d)
	i := sort.Search(len(t.ranges), func(i int) bool {
		return t.ranges[i].Start.After(d)
	})
	if i == 0 {
		return Range{}, false
	}
	r := t.ranges[i-1]
	if d.After(r.End) {
		return Range{}, false
	}
	return r, true
}

// Contains reports whether d lies inside any range.
func (t *IntervalTable) Contains(d time.Time) bool {
	_, ok := t.Lookup(d)
	return ok
}

// ContainsWithAnchor returns the anchor year of the range containing d.
func (t *IntervalTable) ContainsWithAnchor(d time.Time) (int, bool) {
	r, ok := t.Lookup(d)
	if !ok {
		return 0, false
	}
	return r.Anchor, true
}

// Len returns the number of ranges.
func (t *IntervalTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.ranges)
}

// Ranges returns a copy of the sorted ranges.
func (t *IntervalTable) Ranges() []Range {
	if t == nil {
		return nil
	}
	out := make([]Range, len(t.ranges))
	copy(out, t.ranges)
	return out
}

// Span returns the first start and last end of the table. Both are zero for
// an empty table.
func (t *IntervalTable) Span() (first, last time.Time) {
	if t.Len() == 0 {
		return time.Time{}, time.Time{}
	}
	return t.ranges[0].Start, t.ranges[len(t.ranges)-1].End
}
