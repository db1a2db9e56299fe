// Package profile persists per-device batch timings across runs.
// Stored means seed the adaptive scheduler on startup so a machine
// that has run before skips the cold calibration phase.
package profile

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/weftvm/weft/internal/backend"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema
const currentSchemaVersion = 1

// recentSamples bounds how much history feeds a mean. Older samples
// reflect drivers and thermals that may no longer apply.
const recentSamples = 64

// Key derives the stable profile identity of a device. Timings are
// comparable only on the same part, so the key folds in vendor and
// compute-unit count.
func Key(info backend.DeviceInfo) string {
	return fmt.Sprintf("%s/%d", info.Vendor, info.ComputeUnits)
}

// Store provides durable storage for device timing profiles.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db *sql.DB
}

// Open creates or opens the profile database at the given path,
// applying pragmas and migrations. Idempotent.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordSample appends one completed batch timing for a device.
func (s *Store) RecordSample(ctx context.Context, deviceKey string, kind backend.Kind, nsPerPair float64, pairs uint64) error {
	if nsPerPair <= 0 || pairs == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO perf_samples (device_key, backend, ns_per_pair, pairs)
		VALUES (?, ?, ?, ?)
	`, deviceKey, kind.String(), nsPerPair, pairs)
	if err != nil {
		return fmt.Errorf("record sample: %w", err)
	}
	return nil
}

// Means returns the pair-weighted mean ns-per-pair over the most
// recent samples for each backend. A backend with no history reports
// zero, which the scheduler treats as unmeasured.
func (s *Store) Means(ctx context.Context, deviceKey string) (cpuNsPerPair, gpuNsPerPair float64, err error) {
	for _, kind := range []backend.Kind{backend.KindCPU, backend.KindGPU} {
		var mean sql.NullFloat64
		err = s.db.QueryRowContext(ctx, `
			SELECT SUM(ns_per_pair * pairs) / SUM(pairs) FROM (
				SELECT ns_per_pair, pairs FROM perf_samples
				WHERE device_key = ? AND backend = ?
				ORDER BY id DESC LIMIT ?
			)
		`, deviceKey, kind.String(), recentSamples).Scan(&mean)
		if err != nil {
			return 0, 0, fmt.Errorf("query means: %w", err)
		}
		if kind == backend.KindCPU {
			cpuNsPerPair = mean.Float64
		} else {
			gpuNsPerPair = mean.Float64
		}
	}
	return cpuNsPerPair, gpuNsPerPair, nil
}

// SampleCount reports the stored sample count for a device, mainly
// for diagnostics output.
func (s *Store) SampleCount(ctx context.Context, deviceKey string) (uint64, error) {
	var n uint64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM perf_samples WHERE device_key = ?
	`, deviceKey).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count samples: %w", err)
	}
	return n, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist. Idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}
