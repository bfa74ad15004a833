package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"storecast/internal/calendar"
	"storecast/internal/domain"
	"storecast/internal/frame"
	"storecast/internal/join"
	"storecast/internal/timeseries"
)

// Compile-time interface checks.
var _ TransactionStore = (*ParquetStore)(nil)
var _ FeatureStore = (*ParquetStore)(nil)

// ParquetStore implements TransactionStore and FeatureStore using Parquet
// files on disk.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// TransactionRecord is the Parquet schema for raw sales rows.
type TransactionRecord struct {
	Store     string  `parquet:"store"`
	Item      string  `parquet:"item"`
	Date      int64   `parquet:"date,timestamp(millisecond)"` // Unix ms, midnight UTC
	NetAmount float64 `parquet:"net_amount"`
}

// FeatureRecord is the Parquet schema for an enriched row. Every derived
// feature is optional; a nil field is a missing value or a feature that was
// not computed.
type FeatureRecord struct {
	Store     string   `parquet:"store"`
	Item      string   `parquet:"item"`
	Date      int64    `parquet:"date,timestamp(millisecond)"`
	NetAmount *float64 `parquet:"net_amount,optional"`

	DayOfWeek         *string `parquet:"day_of_week,optional"`
	WeekOfYear        *int32  `parquet:"week_of_year,optional"`
	Month             *int32  `parquet:"month,optional"`
	IsWeekend         *bool   `parquet:"is_weekend,optional"`
	IsStartOfMonth    *bool   `parquet:"is_start_of_month,optional"`
	IsEndOfMonth      *bool   `parquet:"is_end_of_month,optional"`
	IsRamadan         *bool   `parquet:"is_ramadan,optional"`
	IsEidFitr         *bool   `parquet:"is_eid_fitr,optional"`
	IsEidAdha         *bool   `parquet:"is_eid_adha,optional"`
	IsGreatLent       *bool   `parquet:"is_great_lent,optional"`
	IsAdventFast      *bool   `parquet:"is_advent_fast,optional"`
	IsExamPeriod      *bool   `parquet:"is_exam_period,optional"`
	IsNationalHoliday *bool   `parquet:"is_national_holiday,optional"`
	Season            *string `parquet:"season,optional"`
	RetailEvent       *string `parquet:"retail_event,optional"`

	RollingAvg7d          *float64 `parquet:"rolling_avg_7d,optional"`
	RollingAvg15d         *float64 `parquet:"rolling_avg_15d,optional"`
	RollingAvg30d         *float64 `parquet:"rolling_avg_30d,optional"`
	StdDevSales15d        *float64 `parquet:"std_dev_sales_15d,optional"`
	SalesLag1d            *float64 `parquet:"sales_lag_1d,optional"`
	SalesLag7d            *float64 `parquet:"sales_lag_7d,optional"`
	SalesLag365d          *float64 `parquet:"sales_lag_365d,optional"`
	TotalSalesLastRamadan *float64 `parquet:"total_sales_last_ramadan,optional"`

	FXRate               *float64 `parquet:"fx_rate,optional"`
	InflationIndex       *float64 `parquet:"inflation_index,optional"`
	CurrentStockQty      *float64 `parquet:"current_stock_qty,optional"`
	StockCoverDays       *float64 `parquet:"stock_cover_days,optional"`
	SafetyStockThreshold *float64 `parquet:"safety_stock_threshold,optional"`
}

// Time returns the record's date.
func (r FeatureRecord) Time() time.Time {
	return time.UnixMilli(r.Date).UTC()
}

// ---------------------------------------------------------------------------
// TransactionStore implementation
// ---------------------------------------------------------------------------

// WriteTransactions appends observations to Parquet files partitioned by
// year:
//
//	<DataDir>/transactions/<YYYY>.parquet
//
// Rows are never deduplicated; (store, item, date) is not a unique key.
func (s *ParquetStore) WriteTransactions(_ context.Context, obs []domain.Observation) error {
	if len(obs) == 0 {
		return nil
	}

	groups := make(map[int][]TransactionRecord)
	for _, o := range obs {
		d := frame.DateOf(o.Date)
		groups[d.Year()] = append(groups[d.Year()], TransactionRecord{
			Store:     o.Store,
			Item:      o.Item,
			Date:      d.UnixMilli(),
			NetAmount: o.NetAmount,
		})
	}

	for year, records := range groups {
		path := s.transactionPath(year)

		existing, err := readTransactionFile(path)
		if err != nil {
			return fmt.Errorf("reading transactions for %d: %w", year, err)
		}
		merged := appendTransactionRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing transactions for %d: %w", year, err)
		}
	}
	return nil
}

// ReadTransactions reads observations dated within [start, end].
func (s *ParquetStore) ReadTransactions(_ context.Context, start, end time.Time) ([]domain.Observation, error) {
	start, end = frame.DateOf(start), frame.DateOf(end)
	var obs []domain.Observation
	for year := start.Year(); year <= end.Year(); year++ {
		records, err := readTransactionFile(s.transactionPath(year))
		if err != nil {
			return nil, fmt.Errorf("reading transactions for %d: %w", year, err)
		}
		for _, r := range records {
			d := time.UnixMilli(r.Date).UTC()
			if d.Before(start) || d.After(end) {
				continue
			}
			obs = append(obs, domain.Observation{
				Store:     r.Store,
				Item:      r.Item,
				Date:      d,
				NetAmount: r.NetAmount,
			})
		}
	}
	return obs, nil
}

// ---------------------------------------------------------------------------
// FeatureStore implementation
// ---------------------------------------------------------------------------

// WriteFeatures converts f into FeatureRecords and replaces
// <DataDir>/features/<name>.parquet. cols names the key columns of f;
// derived columns are matched by their default names.
func (s *ParquetStore) WriteFeatures(_ context.Context, name string, f *frame.Frame, cols domain.Columns) error {
	records, err := FeatureRecords(f, cols)
	if err != nil {
		return err
	}
	if err := writeParquetFile(s.featurePath(name), records); err != nil {
		return fmt.Errorf("writing features %s: %w", name, err)
	}
	return nil
}

// ReadFeatures reads the named feature set.
func (s *ParquetStore) ReadFeatures(_ context.Context, name string) ([]FeatureRecord, error) {
	records, err := readParquetFile[FeatureRecord](s.featurePath(name))
	if err != nil {
		return nil, fmt.Errorf("reading features %s: %w", name, err)
	}
	return records, nil
}

// ListFeatureSets lists the stored feature sets.
func (s *ParquetStore) ListFeatureSets(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.DataDir, "features"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".parquet") {
			names = append(names, strings.TrimSuffix(e.Name(), ".parquet"))
		}
	}
	sort.Strings(names)
	return names, nil
}

// ---------------------------------------------------------------------------
// Frame conversion
// ---------------------------------------------------------------------------

type floatField struct {
	col string
	ptr func(*FeatureRecord) **float64
}

type boolField struct {
	col string
	ptr func(*FeatureRecord) **bool
}

type intField struct {
	col string
	ptr func(*FeatureRecord) **int32
}

type stringField struct {
	col string
	ptr func(*FeatureRecord) **string
}

var floatFields = []floatField{
	{timeseries.ColRollingAvg7, func(r *FeatureRecord) **float64 { return &r.RollingAvg7d }},
	{timeseries.ColRollingAvg15, func(r *FeatureRecord) **float64 { return &r.RollingAvg15d }},
	{timeseries.ColRollingAvg30, func(r *FeatureRecord) **float64 { return &r.RollingAvg30d }},
	{timeseries.ColStdDev15, func(r *FeatureRecord) **float64 { return &r.StdDevSales15d }},
	{timeseries.ColLag1, func(r *FeatureRecord) **float64 { return &r.SalesLag1d }},
	{timeseries.ColLag7, func(r *FeatureRecord) **float64 { return &r.SalesLag7d }},
	{timeseries.ColLag365, func(r *FeatureRecord) **float64 { return &r.SalesLag365d }},
	{timeseries.ColRamadanTotal, func(r *FeatureRecord) **float64 { return &r.TotalSalesLastRamadan }},
	{join.ColFXRate, func(r *FeatureRecord) **float64 { return &r.FXRate }},
	{join.ColInflationIndex, func(r *FeatureRecord) **float64 { return &r.InflationIndex }},
	{join.ColStockQty, func(r *FeatureRecord) **float64 { return &r.CurrentStockQty }},
	{join.ColStockCoverDays, func(r *FeatureRecord) **float64 { return &r.StockCoverDays }},
	{join.ColSafetyStock, func(r *FeatureRecord) **float64 { return &r.SafetyStockThreshold }},
}

var boolFields = []boolField{
	{calendar.ColIsWeekend, func(r *FeatureRecord) **bool { return &r.IsWeekend }},
	{calendar.ColIsStartOfMonth, func(r *FeatureRecord) **bool { return &r.IsStartOfMonth }},
	{calendar.ColIsEndOfMonth, func(r *FeatureRecord) **bool { return &r.IsEndOfMonth }},
	{calendar.ColIsRamadan, func(r *FeatureRecord) **bool { return &r.IsRamadan }},
	{calendar.ColIsEidFitr, func(r *FeatureRecord) **bool { return &r.IsEidFitr }},
	{calendar.ColIsEidAdha, func(r *FeatureRecord) **bool { return &r.IsEidAdha }},
	{calendar.ColIsGreatLent, func(r *FeatureRecord) **bool { return &r.IsGreatLent }},
	{calendar.ColIsAdventFast, func(r *FeatureRecord) **bool { return &r.IsAdventFast }},
	{calendar.ColIsExamPeriod, func(r *FeatureRecord) **bool { return &r.IsExamPeriod }},
	{calendar.ColIsNationalHoliday, func(r *FeatureRecord) **bool { return &r.IsNationalHoliday }},
}

var intFields = []intField{
	{calendar.ColWeekOfYear, func(r *FeatureRecord) **int32 { return &r.WeekOfYear }},
	{calendar.ColMonth, func(r *FeatureRecord) **int32 { return &r.Month }},
}

var stringFields = []stringField{
	{calendar.ColDayOfWeek, func(r *FeatureRecord) **string { return &r.DayOfWeek }},
	{calendar.ColSeason, func(r *FeatureRecord) **string { return &r.Season }},
	{calendar.ColRetailEvent, func(r *FeatureRecord) **string { return &r.RetailEvent }},
}

// FeatureRecords converts f into FeatureRecords. The key columns named by
// cols are required; derived columns that are absent stay nil.
func FeatureRecords(f *frame.Frame, cols domain.Columns) ([]FeatureRecord, error) {
	stores, err := f.Keys(cols.Store)
	if err != nil {
		return nil, err
	}
	items, err := f.Keys(cols.Item)
	if err != nil {
		return nil, err
	}
	dates, err := f.Dates(cols.Date)
	if err != nil {
		return nil, err
	}

	records := make([]FeatureRecord, f.Len())
	for i := range records {
		records[i] = FeatureRecord{
			Store: stores[i],
			Item:  items[i],
			Date:  frame.DateOf(dates[i]).UnixMilli(),
		}
	}

	value := floatField{cols.Value, func(r *FeatureRecord) **float64 { return &r.NetAmount }}
	for _, fd := range append([]floatField{value}, floatFields...) {
		if !f.Has(fd.col) {
			continue
		}
		vals, err := f.Floats(fd.col)
		if err != nil {
			return nil, err
		}
		for i, v := range vals {
			if !frame.IsMissing(v) {
				*fd.ptr(&records[i]) = &v
			}
		}
	}
	for _, fd := range boolFields {
		if !f.Has(fd.col) {
			continue
		}
		vals, err := f.Bools(fd.col)
		if err != nil {
			return nil, err
		}
		for i, v := range vals {
			*fd.ptr(&records[i]) = &v
		}
	}
	for _, fd := range intFields {
		if !f.Has(fd.col) {
			continue
		}
		vals, err := f.Ints(fd.col)
		if err != nil {
			return nil, err
		}
		for i, v := range vals {
			n := int32(v)
			*fd.ptr(&records[i]) = &n
		}
	}
	for _, fd := range stringFields {
		if !f.Has(fd.col) {
			continue
		}
		vals, err := f.Strings(fd.col)
		if err != nil {
			return nil, err
		}
		for i, v := range vals {
			*fd.ptr(&records[i]) = &v
		}
	}
	return records, nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

// transactionPath returns the filesystem path for a transaction Parquet file.
// Layout: <dataDir>/transactions/<YYYY>.parquet
func (s *ParquetStore) transactionPath(year int) string {
	return filepath.Join(s.DataDir, "transactions", fmt.Sprintf("%d.parquet", year))
}

// featurePath returns the filesystem path for a feature set.
// Layout: <dataDir>/features/<name>.parquet
func (s *ParquetStore) featurePath(name string) string {
	return filepath.Join(s.DataDir, "features", name+".parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// readTransactionFile reads a year file. A missing file holds no rows; any
// other failure is returned so that an append never overwrites rows it
// could not read.
func readTransactionFile(path string) ([]TransactionRecord, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return readParquetFile[TransactionRecord](path)
}

// appendTransactionRecords appends incoming to existing and orders the
// result by date, keeping arrival order for equal dates.
func appendTransactionRecords(existing, incoming []TransactionRecord) []TransactionRecord {
	merged := make([]TransactionRecord, 0, len(existing)+len(incoming))
	merged = append(merged, existing...)
	merged = append(merged, incoming...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Date < merged[j].Date
	})
	return merged
}
