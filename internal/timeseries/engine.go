// Package timeseries computes per-(store, item) ordered features: trailing
// rolling statistics, lags and the Ramadan-period sales total.
//
// Every operation first sorts the frame stably by (store, item, date) and
// returns rows in that order; callers never need to pre-sort.
package timeseries

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"storecast/internal/calendar"
	"storecast/internal/domain"
	"storecast/internal/frame"
)

// ErrInvalidWindow is returned for a rolling window below 1 or a negative lag.
var ErrInvalidWindow = errors.New("invalid window")

// Default output column names.
const (
	ColRollingAvg7  = "rolling_avg_7d"
	ColRollingAvg15 = "rolling_avg_15d"
	ColRollingAvg30 = "rolling_avg_30d"
	ColStdDev15     = "std_dev_sales_15d"
	ColLag1         = "sales_lag_1d"
	ColLag7         = "sales_lag_7d"
	ColLag365       = "sales_lag_365d"
	ColRamadanTotal = "total_sales_last_ramadan"
)

// Options names the input columns and bounds the worker pool.
type Options struct {
	StoreCol string
	ItemCol  string
	DateCol  string
	ValueCol string
	Workers  int
	Logger   *slog.Logger
}

// DefaultOptions uses the transaction column names and GOMAXPROCS workers.
func DefaultOptions() Options {
	c := domain.DefaultColumns()
	return Options{StoreCol: c.Store, ItemCol: c.Item, DateCol: c.Date, ValueCol: c.Value}
}

// Engine runs grouped computations over a frame.
type Engine struct {
	opts Options
	log  *slog.Logger
}

// New returns an Engine. Zero Workers means runtime.GOMAXPROCS(0).
func New(opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{opts: opts, log: log.With("component", "timeseries")}
}

// Options returns the engine's effective options.
func (e *Engine) Options() Options { return e.opts }

// ---------------------------------------------------------------------------
// Sorting and grouping
// ---------------------------------------------------------------------------

// Sort returns f stably sorted by (store, item, date). Rows with equal keys
// keep their relative order.
func (e *Engine) Sort(f *frame.Frame) (*frame.Frame, error) {
	if err := f.Require(e.opts.StoreCol, e.opts.ItemCol, e.opts.DateCol, e.opts.ValueCol); err != nil {
		return nil, err
	}
	stores, err := f.Keys(e.opts.StoreCol)
	if err != nil {
		return nil, err
	}
	items, err := f.Keys(e.opts.ItemCol)
	if err != nil {
		return nil, err
	}
	dates, err := f.Dates(e.opts.DateCol)
	if err != nil {
		return nil, err
	}
	if _, err := f.Floats(e.opts.ValueCol); err != nil {
		return nil, err
	}

	perm := make([]int, f.Len())
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool {
		i, j := perm[a], perm[b]
		if stores[i] != stores[j] {
			return stores[i] < stores[j]
		}
		if items[i] != items[j] {
			return items[i] < items[j]
		}
		return frame.DateOf(dates[i]).Before(frame.DateOf(dates[j]))
	})
	return f.Take(perm), nil
}

// segment is the half-open row range [lo, hi) of one group in a sorted frame.
type segment struct {
	key    domain.GroupKey
	lo, hi int
}

// sorted is a frame sorted by group with its value and date columns resolved.
type sorted struct {
	frame  *frame.Frame
	values frame.Floats
	dates  frame.Dates
	groups []segment
}

func (e *Engine) prepare(f *frame.Frame) (*sorted, error) {
	sf, err := e.Sort(f)
	if err != nil {
		return nil, err
	}
	stores, _ := sf.Keys(e.opts.StoreCol)
	items, _ := sf.Keys(e.opts.ItemCol)
	values, _ := sf.Floats(e.opts.ValueCol)
	dates, _ := sf.Dates(e.opts.DateCol)

	var groups []segment
	for i := 0; i < sf.Len(); {
		j := i + 1
		for j < sf.Len() && stores[j] == stores[i] && items[j] == items[i] {
			j++
		}
		groups = append(groups, segment{key: domain.GroupKey{Store: stores[i], Item: items[i]}, lo: i, hi: j})
		i = j
	}
	return &sorted{frame: sf, values: values, dates: dates, groups: groups}, nil
}

// forEachGroup runs fn over every group on the worker pool. Each call owns
// the output indices [lo, hi) of its group.
func (e *Engine) forEachGroup(ctx context.Context, groups []segment, fn func(s segment)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for _, s := range groups {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(s)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// compute prepares f, fills a float column group by group and appends it.
func (e *Engine) compute(ctx context.Context, f *frame.Frame, newCol, op string, fn func(s *sorted, seg segment, out frame.Floats)) (*frame.Frame, error) {
	start := time.Now()
	s, err := e.prepare(f)
	if err != nil {
		return nil, err
	}
	if s.frame.Has(newCol) {
		return nil, fmt.Errorf("%w: %q", frame.ErrColumnExists, newCol)
	}
	out := frame.NewMissingFloats(s.frame.Len())
	if err := e.forEachGroup(ctx, s.groups, func(seg segment) { fn(s, seg, out) }); err != nil {
		return nil, err
	}
	e.log.Debug("computed grouped feature",
		"op", op,
		"column", newCol,
		"rows", s.frame.Len(),
		"groups", len(s.groups),
		"elapsed", time.Since(start),
	)
	return s.frame.With(newCol, out)
}

// present collects the non-missing values of v into buf.
func present(buf, v []float64) []float64 {
	buf = buf[:0]
	for _, x := range v {
		if !frame.IsMissing(x) {
			buf = append(buf, x)
		}
	}
	return buf
}

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// RollingMean appends the mean of the value over the trailing window
// observations of each group, the current row included. Fewer rows than the
// window are averaged as they are; missing values are skipped.
func (e *Engine) RollingMean(ctx context.Context, f *frame.Frame, window int, newCol string) (*frame.Frame, error) {
	if window < 1 {
		return nil, fmt.Errorf("%w: rolling mean window %d", ErrInvalidWindow, window)
	}
	return e.compute(ctx, f, newCol, "rolling_mean", func(s *sorted, seg segment, out frame.Floats) {
		buf := make([]float64, 0, window)
		for i := seg.lo; i < seg.hi; i++ {
			buf = present(buf, s.values[max(seg.lo, i-window+1):i+1])
			if len(buf) > 0 {
				out[i] = stat.Mean(buf, nil)
			}
		}
	})
}

// RollingStd appends the sample standard deviation over the trailing window.
// Windows with fewer than two present values are missing.
func (e *Engine) RollingStd(ctx context.Context, f *frame.Frame, window int, newCol string) (*frame.Frame, error) {
	if window < 1 {
		return nil, fmt.Errorf("%w: rolling std window %d", ErrInvalidWindow, window)
	}
	return e.compute(ctx, f, newCol, "rolling_std", func(s *sorted, seg segment, out frame.Floats) {
		buf := make([]float64, 0, window)
		for i := seg.lo; i < seg.hi; i++ {
			buf = present(buf, s.values[max(seg.lo, i-window+1):i+1])
			if len(buf) >= 2 {
				out[i] = stat.StdDev(buf, nil)
			}
		}
	})
}

// Lag appends the value n observations earlier in the group; the first n
// rows of each group are missing.
func (e *Engine) Lag(ctx context.Context, f *frame.Frame, n int, newCol string) (*frame.Frame, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: lag %d", ErrInvalidWindow, n)
	}
	return e.compute(ctx, f, newCol, "lag", func(s *sorted, seg segment, out frame.Floats) {
		for i := seg.lo + n; i < seg.hi; i++ {
			out[i] = s.values[i-n]
		}
	})
}

// RamadanTotal sums each group's value over rows inside a range of table,
// keyed by the range's anchor year, and writes the sum to every row of the
// group whose own calendar year equals that anchor. Other rows are missing.
func (e *Engine) RamadanTotal(ctx context.Context, f *frame.Frame, table *calendar.IntervalTable, newCol string) (*frame.Frame, error) {
	return e.compute(ctx, f, newCol, "ramadan_total", func(s *sorted, seg segment, out frame.Floats) {
		byYear := make(map[int][]float64)
		for i := seg.lo; i < seg.hi; i++ {
			v := s.values[i]
			if frame.IsMissing(v) {
				continue
			}
			if anchor, ok := table.ContainsWithAnchor(s.dates[i]); ok {
				byYear[anchor] = append(byYear[anchor], v)
			}
		}
		if len(byYear) == 0 {
			return
		}
		totals := make(map[int]float64, len(byYear))
		for y, vs := range byYear {
			totals[y] = floats.Sum(vs)
		}
		for i := seg.lo; i < seg.hi; i++ {
			if t, ok := totals[s.dates[i].Year()]; ok {
				out[i] = t
			}
		}
	})
}

// ---------------------------------------------------------------------------
// Catalogue
// ---------------------------------------------------------------------------

// Feature is one entry of the grouped feature catalogue.
type Feature struct {
	Name  string
	Apply func(ctx context.Context, f *frame.Frame) (*frame.Frame, error)
}

// Features returns the default catalogue. ramadan is the table used by the
// Ramadan total.
func (e *Engine) Features(ramadan *calendar.IntervalTable) []Feature {
	mean := func(w int, name string) Feature {
		return Feature{name, func(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
			return e.RollingMean(ctx, f, w, name)
		}}
	}
	lag := func(n int, name string) Feature {
		return Feature{name, func(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
			return e.Lag(ctx, f, n, name)
		}}
	}
	return []Feature{
		mean(7, ColRollingAvg7),
		mean(15, ColRollingAvg15),
		mean(30, ColRollingAvg30),
		{ColStdDev15, func(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
			return e.RollingStd(ctx, f, 15, ColStdDev15)
		}},
		lag(1, ColLag1),
		lag(7, ColLag7),
		lag(365, ColLag365),
		{ColRamadanTotal, func(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
			return e.RamadanTotal(ctx, f, ramadan, ColRamadanTotal)
		}},
	}
}
