package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"storecast/internal/api"
	"storecast/internal/calendar"
	"storecast/internal/config"
	"storecast/internal/store"
	"storecast/internal/util"
)

func main() {
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

	builder, err := calendar.Open(cfg.Calendar.File, calendar.YearSpan{From: cfg.Calendar.FromYear, To: cfg.Calendar.ToYear})
	if err != nil {
		log.Fatalf("loading calendar: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc := api.NewCalendarService(builder, logger)
	srv := api.NewServer(cfg, svc, store.NewParquetStore(cfg.Storage.DataDir), reg, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("storecast-server starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"grpc_port", cfg.Server.GRPCPort,
		"calendar_years", builder.Span(),
	)
	if err := srv.ListenAndServe(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
