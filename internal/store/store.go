// Package store defines storage interfaces for persisting and retrieving
// transactions, enriched feature sets and the external FX, inflation and
// stock tables.
package store

import (
	"context"
	"time"

	"storecast/internal/domain"
	"storecast/internal/frame"
)

// TransactionStore persists and retrieves raw sales observations.
type TransactionStore interface {
	// WriteTransactions appends a batch of observations to storage.
	WriteTransactions(ctx context.Context, obs []domain.Observation) error

	// ReadTransactions returns observations dated within [start, end].
	ReadTransactions(ctx context.Context, start, end time.Time) ([]domain.Observation, error)
}

// FeatureStore persists enriched feature frames under a name.
type FeatureStore interface {
	// WriteFeatures replaces the named feature set with f.
	WriteFeatures(ctx context.Context, name string, f *frame.Frame, cols domain.Columns) error

	// ReadFeatures returns the rows of the named feature set.
	ReadFeatures(ctx context.Context, name string) ([]FeatureRecord, error)

	// ListFeatureSets returns the names of all stored feature sets.
	ListFeatureSets(ctx context.Context) ([]string, error)
}

// ExternalStore persists and retrieves the tables joined onto features.
type ExternalStore interface {
	// SaveFXRates inserts or replaces FX rates by date.
	SaveFXRates(ctx context.Context, rates []domain.FXRate) error

	// LoadFXRates returns all FX rates ordered by date.
	LoadFXRates(ctx context.Context) ([]domain.FXRate, error)

	// SaveInflation inserts or replaces inflation points by month.
	SaveInflation(ctx context.Context, points []domain.InflationPoint) error

	// LoadInflation returns all inflation points ordered by date.
	LoadInflation(ctx context.Context) ([]domain.InflationPoint, error)

	// SaveStockLevels inserts or replaces stock levels by (location, item, date).
	SaveStockLevels(ctx context.Context, levels []domain.StockLevel) error

	// LoadStockLevels returns stock levels dated within [start, end].
	LoadStockLevels(ctx context.Context, start, end time.Time) ([]domain.StockLevel, error)
}
