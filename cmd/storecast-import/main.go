// One-shot tool: import CSV exports into the stores.
//
// Usage:
//
//	storecast-import -transactions sales.csv -fx fx.csv -inflation cpi.csv -stock stock.csv
//
// Every flag is optional; only the named files are imported.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"storecast/internal/config"
	"storecast/internal/gather"
	"storecast/internal/store"
	"storecast/internal/util"
)

func main() {
	txPath := flag.String("transactions", "", "transaction CSV appended to the Parquet store")
	fxPath := flag.String("fx", "", "FX rate CSV (Date, fx_rate)")
	cpiPath := flag.String("inflation", "", "inflation CSV (Date, inflation_index)")
	stockPath := flag.String("stock", "", "stock CSV (Location Code, Item No_, Date, Stock)")
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

	if *txPath == "" && *fxPath == "" && *cpiPath == "" && *stockPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	ext, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening sqlite: %v", err)
	}

	var gatherers []gather.Gatherer
	if *txPath != "" {
		gatherers = append(gatherers, gather.NewTransactionGatherer(*txPath, cfg.Columns, store.NewParquetStore(cfg.Storage.DataDir), logger))
	}
	if *fxPath != "" {
		gatherers = append(gatherers, gather.NewFXGatherer(*fxPath, ext, logger))
	}
	if *cpiPath != "" {
		gatherers = append(gatherers, gather.NewInflationGatherer(*cpiPath, ext, logger))
	}
	if *stockPath != "" {
		gatherers = append(gatherers, gather.NewStockGatherer(*stockPath, ext, logger))
	}

	err = run(gatherers)
	if cerr := ext.Close(); cerr != nil {
		logger.Error("closing sqlite", "error", cerr)
	}
	if err != nil {
		logger.Error("import failed", "error", err)
		os.Exit(1)
	}
}

func run(gatherers []gather.Gatherer) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	for _, g := range gatherers {
		if err := g.Run(ctx); err != nil {
			return err
		}
	}
	return nil
}
