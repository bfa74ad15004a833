// Batch tool: compute the feature catalogue for stored transactions and
// write it as a named feature set.
//
// Usage:
//
//	storecast-featurize -from 2024-01-01 -to 2024-12-31 -name fy2024
//	storecast-featurize -csv sales.csv -name adhoc
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"storecast/internal/calendar"
	"storecast/internal/config"
	"storecast/internal/frame"
	"storecast/internal/gather"
	"storecast/internal/pipeline"
	"storecast/internal/store"
	"storecast/internal/util"
)

func main() {
	fromStr := flag.String("from", "", "first transaction date (YYYY-MM-DD); defaults to the calendar span")
	toStr := flag.String("to", "", "last transaction date (YYYY-MM-DD); defaults to the calendar span")
	csvPath := flag.String("csv", "", "read transactions from this CSV instead of the Parquet store")
	name := flag.String("name", "features", "feature set name")
	flag.Parse()

	cfgPath := "config/storecast.yaml"
	if p := os.Getenv("STORECAST_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	if err := run(cfg, logger, *fromStr, *toStr, *csvPath, *name); err != nil {
		logger.Error("featurize failed", "error", err)
		os.Exit(1)
	}
}

// run returns after every deferred cleanup so that the SQLite handle is
// closed on all paths. Feature failures are reported after the partial
// feature set is written.
func run(cfg *config.Config, logger *slog.Logger, fromStr, toStr, csvPath, name string) error {
	span := calendar.YearSpan{From: cfg.Calendar.FromYear, To: cfg.Calendar.ToYear}
	from, to, err := dateRange(fromStr, toStr, span)
	if err != nil {
		return fmt.Errorf("invalid range: %w", err)
	}

	builder, err := calendar.Open(cfg.Calendar.File, span)
	if err != nil {
		return fmt.Errorf("loading calendar: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pstore := store.NewParquetStore(cfg.Storage.DataDir)
	f, err := loadTransactions(ctx, csvPath, pstore, cfg, from, to)
	if err != nil {
		return fmt.Errorf("loading transactions: %w", err)
	}
	if f.Len() == 0 {
		logger.Info("no transactions in range", "from", from.Format(time.DateOnly), "to", to.Format(time.DateOnly))
		return nil
	}

	ext, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return fmt.Errorf("opening sqlite: %w", err)
	}
	defer ext.Close()

	in, err := loadInputs(ctx, ext, f, cfg)
	if err != nil {
		return fmt.Errorf("loading external tables: %w", err)
	}

	reg := prometheus.NewRegistry()
	p := pipeline.New(builder, pipeline.Options{
		Columns:      cfg.Columns,
		Workers:      cfg.Features.Workers,
		SafetyFactor: cfg.Features.SafetyFactor,
		Skip:         cfg.Features.Skip,
		Logger:       logger,
		Metrics:      pipeline.NewMetrics(reg),
	})

	out, runErr := p.Run(ctx, f, in)
	if out == nil {
		return fmt.Errorf("pipeline: %w", runErr)
	}
	if err := pstore.WriteFeatures(ctx, name, out, cfg.Columns); err != nil {
		return fmt.Errorf("writing feature set: %w", err)
	}
	logger.Info("feature set written", "name", name, "rows", out.Len(), "columns", out.Width())

	if runErr != nil {
		return fmt.Errorf("some features failed: %w", runErr)
	}
	return nil
}

func dateRange(fromStr, toStr string, span calendar.YearSpan) (from, to time.Time, err error) {
	from = time.Date(span.From, 1, 1, 0, 0, 0, 0, time.UTC)
	to = time.Date(span.To, 12, 31, 0, 0, 0, 0, time.UTC)
	if fromStr != "" {
		if from, err = frame.ParseDate(fromStr); err != nil {
			return from, to, fmt.Errorf("from: %w", err)
		}
	}
	if toStr != "" {
		if to, err = frame.ParseDate(toStr); err != nil {
			return from, to, fmt.Errorf("to: %w", err)
		}
	}
	if to.Before(from) {
		return from, to, fmt.Errorf("to %s before from %s", toStr, fromStr)
	}
	return from, to, nil
}

func loadTransactions(ctx context.Context, csvPath string, ps *store.ParquetStore, cfg *config.Config, from, to time.Time) (*frame.Frame, error) {
	if csvPath != "" {
		r, err := os.Open(csvPath)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return gather.ReadTransactions(r, cfg.Columns)
	}
	obs, err := ps.ReadTransactions(ctx, from, to)
	if err != nil {
		return nil, err
	}
	slog.Info("read transactions", "rows", len(obs))
	return frame.FromObservations(obs, cfg.Columns)
}

func loadInputs(ctx context.Context, ext *store.SQLiteStore, f *frame.Frame, cfg *config.Config) (pipeline.Inputs, error) {
	var in pipeline.Inputs
	var err error
	if in.FX, err = ext.LoadFXRates(ctx); err != nil {
		return in, err
	}
	if in.Inflation, err = ext.LoadInflation(ctx); err != nil {
		return in, err
	}
	dates, err := f.Dates(cfg.Columns.Date)
	if err != nil {
		return in, err
	}
	if r, ok := gather.RangeOf(dates); ok {
		if in.Stock, err = ext.LoadStockLevels(ctx, r.Start, r.End); err != nil {
			return in, err
		}
	}
	return in, nil
}
