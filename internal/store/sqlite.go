package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"storecast/internal/domain"
	"storecast/internal/frame"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ ExternalStore = (*SQLiteStore)(nil)

const sqlDateLayout = "2006-01-02"

// schema creates the external tables. Dates are stored as YYYY-MM-DD text
// so that they sort and compare lexically.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS fx_rates (
		date    TEXT PRIMARY KEY,
		fx_rate REAL NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS inflation (
		month           TEXT PRIMARY KEY,
		date            TEXT NOT NULL,
		inflation_index REAL NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS stock_levels (
		location  TEXT NOT NULL,
		item      TEXT NOT NULL,
		date      TEXT NOT NULL,
		stock_qty REAL NOT NULL,
		PRIMARY KEY (location, item, date)
	)`,
}

// SQLiteStore implements ExternalStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// tables and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating %s: %w", dbPath, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// inTx runs fn inside a transaction, committing on success.
func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func parseSQLDate(s string) (time.Time, error) {
	return time.Parse(sqlDateLayout, s)
}

func sqlDate(t time.Time) string {
	return frame.DateOf(t).Format(sqlDateLayout)
}

// ---------------------------------------------------------------------------
// FX rates
// ---------------------------------------------------------------------------

// SaveFXRates inserts or replaces FX rates by date.
func (s *SQLiteStore) SaveFXRates(ctx context.Context, rates []domain.FXRate) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rates {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO fx_rates (date, fx_rate) VALUES (?, ?)`,
				sqlDate(r.Date), r.Rate); err != nil {
				return fmt.Errorf("saving fx rate %s: %w", sqlDate(r.Date), err)
			}
		}
		return nil
	})
}

// LoadFXRates returns all FX rates ordered by date.
func (s *SQLiteStore) LoadFXRates(ctx context.Context) ([]domain.FXRate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT date, fx_rate FROM fx_rates ORDER BY date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.FXRate
	for rows.Next() {
		var ds string
		var r domain.FXRate
		if err := rows.Scan(&ds, &r.Rate); err != nil {
			return nil, err
		}
		if r.Date, err = parseSQLDate(ds); err != nil {
			return nil, fmt.Errorf("fx_rates: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Inflation
// ---------------------------------------------------------------------------

// SaveInflation inserts or replaces inflation points. The table holds one
// point per month; a later point in the same month replaces the earlier one.
func (s *SQLiteStore) SaveInflation(ctx context.Context, points []domain.InflationPoint) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, p := range points {
			month := frame.DateOf(p.Date).Format("2006-01")
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO inflation (month, date, inflation_index) VALUES (?, ?, ?)`,
				month, sqlDate(p.Date), p.Index); err != nil {
				return fmt.Errorf("saving inflation %s: %w", month, err)
			}
		}
		return nil
	})
}

// LoadInflation returns all inflation points ordered by date.
func (s *SQLiteStore) LoadInflation(ctx context.Context) ([]domain.InflationPoint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT date, inflation_index FROM inflation ORDER BY date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.InflationPoint
	for rows.Next() {
		var ds string
		var p domain.InflationPoint
		if err := rows.Scan(&ds, &p.Index); err != nil {
			return nil, err
		}
		if p.Date, err = parseSQLDate(ds); err != nil {
			return nil, fmt.Errorf("inflation: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Stock levels
// ---------------------------------------------------------------------------

// SaveStockLevels inserts or replaces stock levels by (location, item, date).
func (s *SQLiteStore) SaveStockLevels(ctx context.Context, levels []domain.StockLevel) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT OR REPLACE INTO stock_levels (location, item, date, stock_qty) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, l := range levels {
			if _, err := stmt.ExecContext(ctx, l.Location, l.Item, sqlDate(l.Date), l.Qty); err != nil {
				return fmt.Errorf("saving stock %s/%s/%s: %w", l.Location, l.Item, sqlDate(l.Date), err)
			}
		}
		return nil
	})
}

// LoadStockLevels returns stock levels dated within [start, end], ordered by
// date, location and item.
func (s *SQLiteStore) LoadStockLevels(ctx context.Context, start, end time.Time) ([]domain.StockLevel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT location, item, date, stock_qty FROM stock_levels
		 WHERE date >= ? AND date <= ?
		 ORDER BY date, location, item`,
		sqlDate(start), sqlDate(end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StockLevel
	for rows.Next() {
		var ds string
		var l domain.StockLevel
		if err := rows.Scan(&l.Location, &l.Item, &ds, &l.Qty); err != nil {
			return nil, err
		}
		if l.Date, err = parseSQLDate(ds); err != nil {
			return nil, fmt.Errorf("stock_levels: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
