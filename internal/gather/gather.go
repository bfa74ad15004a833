// Package gather imports raw CSV exports into the stores: transactions into
// the Parquet store and the external FX, inflation and stock tables into
// SQLite.
package gather

import (
	"context"
	"time"
)

// Gatherer is the interface for all data import processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run performs the import. It returns early if ctx is cancelled.
	Run(ctx context.Context) error
}

// DateRange represents an inclusive range of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// RangeOf returns the smallest range holding every date. ok is false when
// dates is empty.
func RangeOf(dates []time.Time) (r DateRange, ok bool) {
	for i, d := range dates {
		if i == 0 || d.Before(r.Start) {
			r.Start = d
		}
		if i == 0 || d.After(r.End) {
			r.End = d
		}
	}
	return r, len(dates) > 0
}

// Contains reports whether d falls within the range.
func (r DateRange) Contains(d time.Time) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}
