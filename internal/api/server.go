// Package api serves the calendar tagger over gRPC and HTTP, together with
// the feature-set listing and Prometheus metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"storecast/internal/config"
	"storecast/internal/store"
)

const shutdownTimeout = 5 * time.Second

// Server hosts the gRPC calendar service and the HTTP endpoints.
type Server struct {
	calendar *CalendarService
	features store.FeatureStore
	gatherer prometheus.Gatherer
	log      *slog.Logger

	httpAddr string
	grpcAddr string
	grpc     *grpc.Server
	http     *http.Server
}

// NewServer creates a Server listening on the addresses in cfg. features may
// be nil, in which case the feature-set listing answers 404. A nil gatherer
// serves the default Prometheus registry.
func NewServer(cfg *config.Config, svc *CalendarService, features store.FeatureStore, gatherer prometheus.Gatherer, log *slog.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		calendar: svc,
		features: features,
		gatherer: gatherer,
		log:      log.With("component", "api"),
		httpAddr: net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		grpcAddr: net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.GRPCPort)),
		grpc:     grpc.NewServer(),
	}
	svc.RegisterGRPC(s.grpc)
	s.http = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	return s
}

// Handler returns an http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/tag", s.HandleTag)
	mux.HandleFunc("GET /api/v1/tags", s.HandleTagRange)
	mux.HandleFunc("GET /api/v1/feature-sets", s.HandleFeatureSets)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return mux
}

// ListenAndServe opens the HTTP and gRPC listeners and blocks until ctx is
// cancelled or either server fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	grpcLis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", s.grpcAddr, err)
	}
	httpLis, err := net.Listen("tcp", s.httpAddr)
	if err != nil {
		grpcLis.Close()
		return fmt.Errorf("http listen %s: %w", s.httpAddr, err)
	}
	return s.Serve(ctx, grpcLis, httpLis)
}

// Serve runs both servers on the given listeners until ctx is cancelled,
// then shuts them down gracefully.
func (s *Server) Serve(ctx context.Context, grpcLis, httpLis net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("gRPC server listening", "addr", grpcLis.Addr().String())
		return s.grpc.Serve(grpcLis)
	})
	g.Go(func() error {
		s.log.Info("HTTP server listening", "addr", httpLis.Addr().String())
		if err := s.http.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires, after which remaining gRPC streams are cut.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down API server")
	stopped := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(stopped)
	}()

	err := s.http.Shutdown(ctx)
	select {
	case <-stopped:
	case <-ctx.Done():
		s.grpc.Stop()
	}
	return err
}
