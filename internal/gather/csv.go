package gather

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"storecast/internal/domain"
	"storecast/internal/frame"
	"storecast/internal/store"
)

// Column names of the external CSV exports.
const (
	ColDate           = "Date"
	ColFXRate         = "fx_rate"
	ColInflationIndex = "inflation_index"
	ColLocation       = "Location Code"
	ColItem           = "Item No_"
	ColStock          = "Stock"
)

// ---------------------------------------------------------------------------
// Readers
// ---------------------------------------------------------------------------

// ReadTransactions loads a transaction export. The key, date and value
// columns named by cols must be present.
func ReadTransactions(r io.Reader, cols domain.Columns) (*frame.Frame, error) {
	f, err := frame.ReadCSV(r, cols.Date)
	if err != nil {
		return nil, err
	}
	if err := f.Require(cols.Store, cols.Item, cols.Date, cols.Value); err != nil {
		return nil, err
	}
	return f, nil
}

// ReadFXRates loads a (Date, fx_rate) export.
func ReadFXRates(r io.Reader) ([]domain.FXRate, error) {
	f, err := frame.ReadCSV(r, ColDate)
	if err != nil {
		return nil, err
	}
	dates, rates, err := datedNumbers(f, ColFXRate)
	if err != nil {
		return nil, err
	}
	out := make([]domain.FXRate, len(dates))
	for i := range out {
		out[i] = domain.FXRate{Date: dates[i], Rate: rates[i]}
	}
	return out, nil
}

// ReadInflation loads a (Date, inflation_index) export.
func ReadInflation(r io.Reader) ([]domain.InflationPoint, error) {
	f, err := frame.ReadCSV(r, ColDate)
	if err != nil {
		return nil, err
	}
	dates, idx, err := datedNumbers(f, ColInflationIndex)
	if err != nil {
		return nil, err
	}
	out := make([]domain.InflationPoint, len(dates))
	for i := range out {
		out[i] = domain.InflationPoint{Date: dates[i], Index: idx[i]}
	}
	return out, nil
}

// ReadStockLevels loads a (Location Code, Item No_, Date, Stock) export.
func ReadStockLevels(r io.Reader) ([]domain.StockLevel, error) {
	f, err := frame.ReadCSV(r, ColDate)
	if err != nil {
		return nil, err
	}
	locations, err := f.Keys(ColLocation)
	if err != nil {
		return nil, err
	}
	items, err := f.Keys(ColItem)
	if err != nil {
		return nil, err
	}
	dates, qty, err := datedNumbers(f, ColStock)
	if err != nil {
		return nil, err
	}
	out := make([]domain.StockLevel, len(dates))
	for i := range out {
		out[i] = domain.StockLevel{Location: locations[i], Item: items[i], Date: dates[i], Qty: qty[i]}
	}
	return out, nil
}

func datedNumbers(f *frame.Frame, valueCol string) ([]time.Time, []float64, error) {
	dates, err := f.Dates(ColDate)
	if err != nil {
		return nil, nil, err
	}
	values, err := f.Numbers(valueCol)
	if err != nil {
		return nil, nil, err
	}
	return dates, values, nil
}

// ---------------------------------------------------------------------------
// Gatherers
// ---------------------------------------------------------------------------

// CSVGatherer imports one CSV file into a store.
type CSVGatherer struct {
	name string
	path string
	load func(ctx context.Context, r io.Reader) (int, error)
	log  *slog.Logger
}

var _ Gatherer = (*CSVGatherer)(nil)

// Name returns the gatherer identifier.
func (g *CSVGatherer) Name() string { return g.name }

// Run reads the file and saves its rows.
func (g *CSVGatherer) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Open(g.path)
	if err != nil {
		return fmt.Errorf("%s: %w", g.name, err)
	}
	defer f.Close()

	n, err := g.load(ctx, f)
	if err != nil {
		return fmt.Errorf("%s %s: %w", g.name, g.path, err)
	}
	g.log.Info("import complete", "gatherer", g.name, "path", g.path, "rows", n)
	return nil
}

func newCSVGatherer(name, path string, log *slog.Logger, load func(context.Context, io.Reader) (int, error)) *CSVGatherer {
	if log == nil {
		log = slog.Default()
	}
	return &CSVGatherer{name: name, path: path, load: load, log: log}
}

// NewTransactionGatherer appends the transactions at path to ts.
func NewTransactionGatherer(path string, cols domain.Columns, ts store.TransactionStore, log *slog.Logger) *CSVGatherer {
	return newCSVGatherer("transactions", path, log, func(ctx context.Context, r io.Reader) (int, error) {
		f, err := ReadTransactions(r, cols)
		if err != nil {
			return 0, err
		}
		obs, err := f.Observations(cols)
		if err != nil {
			return 0, err
		}
		return len(obs), ts.WriteTransactions(ctx, obs)
	})
}

// NewFXGatherer saves the FX rates at path to es.
func NewFXGatherer(path string, es store.ExternalStore, log *slog.Logger) *CSVGatherer {
	return newCSVGatherer("fx", path, log, func(ctx context.Context, r io.Reader) (int, error) {
		rates, err := ReadFXRates(r)
		if err != nil {
			return 0, err
		}
		return len(rates), es.SaveFXRates(ctx, rates)
	})
}

// NewInflationGatherer saves the inflation points at path to es.
func NewInflationGatherer(path string, es store.ExternalStore, log *slog.Logger) *CSVGatherer {
	return newCSVGatherer("inflation", path, log, func(ctx context.Context, r io.Reader) (int, error) {
		points, err := ReadInflation(r)
		if err != nil {
			return 0, err
		}
		return len(points), es.SaveInflation(ctx, points)
	})
}

// NewStockGatherer saves the stock levels at path to es.
func NewStockGatherer(path string, es store.ExternalStore, log *slog.Logger) *CSVGatherer {
	return newCSVGatherer("stock", path, log, func(ctx context.Context, r io.Reader) (int, error) {
		levels, err := ReadStockLevels(r)
		if err != nil {
			return 0, err
		}
		return len(levels), es.SaveStockLevels(ctx, levels)
	})
}
