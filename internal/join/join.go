// Package join attaches external tables to a feature frame: FX rates by
// date, the inflation index by month and stock levels by (store, item,
// date), plus the stock features derived from them.
package join

import (
	"fmt"
	"sort"
	"time"

	"storecast/internal/domain"
	"storecast/internal/frame"
)

// Default output column names.
const (
	ColFXRate         = "fx_rate"
	ColInflationIndex = "inflation_index"
	ColStockQty       = "current_stock_qty"
	ColStockCoverDays = "stock_cover_days"
	ColSafetyStock    = "safety_stock_threshold"
)

// DefaultSafetyFactor multiplies the 15-day average into the safety stock.
const DefaultSafetyFactor = 0.15

// Options names the key columns of the left frame.
type Options struct {
	StoreCol string
	ItemCol  string
	DateCol  string
}

// DefaultOptions uses the transaction column names.
func DefaultOptions() Options {
	c := domain.DefaultColumns()
	return Options{StoreCol: c.Store, ItemCol: c.Item, DateCol: c.Date}
}

// ---------------------------------------------------------------------------
// Left join
// ---------------------------------------------------------------------------

// leftJoin appends right values to f under newCol. Every left row is kept;
// a left row matching k right rows is repeated k times in right-row order.
// Unmatched rows get a missing value.
func leftJoin[K comparable](f *frame.Frame, leftKeys []K, rightKeys []K, rightValues []float64, newCol string) (*frame.Frame, error) {
	if f.Has(newCol) {
		return nil, fmt.Errorf("%w: %q", frame.ErrColumnExists, newCol)
	}
	matches := make(map[K][]int, len(rightKeys))
	for j, k := range rightKeys {
		matches[k] = append(matches[k], j)
	}

	rows := make([]int, 0, len(leftKeys))
	values := make(frame.Floats, 0, len(leftKeys))
	for i, k := range leftKeys {
		js, ok := matches[k]
		if !ok {
			rows = append(rows, i)
			values = append(values, frame.Missing())
			continue
		}
		for _, j := range js {
			rows = append(rows, i)
			values = append(values, rightValues[j])
		}
	}
	return f.Take(rows).With(newCol, values)
}

// forwardFill replaces missing values with the last present value in
// chronological order. Rows sharing a date keep frame order. Missing values
// before the first present one stay missing.
func forwardFill(dates frame.Dates, values frame.Floats) {
	order := make([]int, len(dates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return frame.DateOf(dates[order[a]]).Before(frame.DateOf(dates[order[b]]))
	})
	last := frame.Missing()
	for _, i := range order {
		if frame.IsMissing(values[i]) {
			values[i] = last
			continue
		}
		last = values[i]
	}
}

// joinFilled runs leftJoin and forward-fills the new column. The column is
// freshly allocated by leftJoin, so filling it in place does not touch f.
func joinFilled[K comparable](f *frame.Frame, dateCol string, leftKeys, rightKeys []K, rightValues []float64, newCol string) (*frame.Frame, error) {
	out, err := leftJoin(f, leftKeys, rightKeys, rightValues, newCol)
	if err != nil {
		return nil, err
	}
	dates, _ := out.Dates(dateCol)
	values, _ := out.Floats(newCol)
	forwardFill(dates, values)
	return out, nil
}

// ---------------------------------------------------------------------------
// External tables
// ---------------------------------------------------------------------------

// AddFXRate left-joins rates on the date column and forward-fills gaps.
func AddFXRate(f *frame.Frame, rates []domain.FXRate, opts Options, newCol string) (*frame.Frame, error) {
	dates, err := f.Dates(opts.DateCol)
	if err != nil {
		return nil, err
	}
	left := make([]time.Time, len(dates))
	for i, d := range dates {
		left[i] = frame.DateOf(d)
	}
	right := make([]time.Time, len(rates))
	values := make([]float64, len(rates))
	for j, r := range rates {
		right[j] = frame.DateOf(r.Date)
		values[j] = r.Rate
	}
	return joinFilled(f, opts.DateCol, left, right, values, newCol)
}

type yearMonth struct {
	year  int
	month time.Month
}

func yearMonthOf(t time.Time) yearMonth {
	return yearMonth{t.Year(), t.Month()}
}

// AddInflationIndex left-joins monthly points on (year, month) of the date
// column and forward-fills gaps.
func AddInflationIndex(f *frame.Frame, points []domain.InflationPoint, opts Options, newCol string) (*frame.Frame, error) {
	dates, err := f.Dates(opts.DateCol)
	if err != nil {
		return nil, err
	}
	left := make([]yearMonth, len(dates))
	for i, d := range dates {
		left[i] = yearMonthOf(d)
	}
	right := make([]yearMonth, len(points))
	values := make([]float64, len(points))
	for j, p := range points {
		right[j] = yearMonthOf(p.Date)
		values[j] = p.Index
	}
	return joinFilled(f, opts.DateCol, left, right, values, newCol)
}

type stockKey struct {
	store, item string
	date        time.Time
}

// AddStockQty left-joins stock levels on exact (store, item, date). A stock
// row's location is matched against the store column. Gaps are not filled.
func AddStockQty(f *frame.Frame, levels []domain.StockLevel, opts Options, newCol string) (*frame.Frame, error) {
	if err := f.Require(opts.StoreCol, opts.ItemCol, opts.DateCol); err != nil {
		return nil, err
	}
	stores, err := f.Keys(opts.StoreCol)
	if err != nil {
		return nil, err
	}
	items, err := f.Keys(opts.ItemCol)
	if err != nil {
		return nil, err
	}
	dates, err := f.Dates(opts.DateCol)
	if err != nil {
		return nil, err
	}
	left := make([]stockKey, f.Len())
	for i := range left {
		left[i] = stockKey{stores[i], items[i], frame.DateOf(dates[i])}
	}
	right := make([]stockKey, len(levels))
	values := make([]float64, len(levels))
	for j, l := range levels {
		right[j] = stockKey{l.Location, l.Item, frame.DateOf(l.Date)}
		values[j] = l.Qty
	}
	return leftJoin(f, left, right, values, newCol)
}

// ---------------------------------------------------------------------------
// Derived stock features
// ---------------------------------------------------------------------------

// AddStockCoverDays appends stock divided by average daily sales. The result
// is missing when either input is missing or the average is zero.
func AddStockCoverDays(f *frame.Frame, stockCol, avgCol, newCol string) (*frame.Frame, error) {
	stock, err := f.Floats(stockCol)
	if err != nil {
		return nil, err
	}
	avg, err := f.Floats(avgCol)
	if err != nil {
		return nil, err
	}
	out := frame.NewMissingFloats(f.Len())
	for i := range out {
		if frame.IsMissing(stock[i]) || frame.IsMissing(avg[i]) || avg[i] == 0 {
			continue
		}
		out[i] = stock[i] / avg[i]
	}
	return f.With(newCol, out)
}

// AddSafetyStockThreshold appends avg × factor; missing averages stay
// missing.
func AddSafetyStockThreshold(f *frame.Frame, avgCol string, factor float64, newCol string) (*frame.Frame, error) {
	avg, err := f.Floats(avgCol)
	if err != nil {
		return nil, err
	}
	out := make(frame.Floats, len(avg))
	for i, v := range avg {
		out[i] = v * factor
	}
	return f.With(newCol, out)
}
