// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package database

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/tomtom215/pelagos/internal/logging"
)

// spatialVerifyQuery confirms spatial functions actually resolve after LOAD.
const spatialVerifyQuery = "SELECT ST_AsText(ST_Point(0, 0));"

// duckdbVersion is the DuckDB version used for local extension paths.
// Must match the duckdb-go-bindings version in go.mod.
const duckdbVersion = "v1.4.3"

// extensionTimeout bounds every extension INSTALL/LOAD/verify call.
// Configurable via DUCKDB_EXTENSION_TIMEOUT (e.g. "1m").
var extensionTimeout = getExtensionTimeout()

func getExtensionTimeout() time.Duration {
	if timeoutStr := os.Getenv("DUCKDB_EXTENSION_TIMEOUT"); timeoutStr != "" {
		if d, err := time.ParseDuration(timeoutStr); err == nil && d > 0 {
			return d
		}
	}
	return 30 * time.Second
}

// extensionRetryConfig controls retry behavior for extension downloads.
type extensionRetryConfig struct {
	MaxRetries  int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	BackoffMult float64
}

var defaultRetryConfig = extensionRetryConfig{
	MaxRetries:  3,
	BaseDelay:   2 * time.Second,
	MaxDelay:    30 * time.Second,
	BackoffMult: 2.0,
}

// installSpatial loads the spatial extension if possible. Failure never
// aborts startup: the schema degrades to plain lon/lat columns and the
// RTree index is skipped.
func (db *DB) installSpatial() {
	if os.Getenv("DUCKDB_DISABLE_SPATIAL") == "true" ||
		os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		db.spatialAvailable = false
		logging.Info().Msg("Spatial extension disabled, storing coordinates without GEOMETRY")
		return
	}

	if err := db.execWithHardTimeout("SET custom_extension_repository = 'https://extensions.duckdb.org';"); err != nil {
		logging.Warn().Err(err).Msg("Failed to set extension repository, will use default")
	}

	if isExtensionInstalledLocally("spatial") {
		logging.Debug().Msg("Spatial extension found locally, skipping download")
	}

	if err := db.execWithRetry("INSTALL spatial;", defaultRetryConfig); err != nil {
		// INSTALL can fail while the extension is already present; LOAD
		// decides.
		if loadErr := db.execWithHardTimeout("LOAD spatial;"); loadErr != nil {
			if forceErr := db.execWithRetry("FORCE INSTALL spatial;", defaultRetryConfig); forceErr != nil {
				db.spatialAvailable = false
				logging.Warn().
					Err(forceErr).
					Msg("Spatial extension unavailable, creating tables without GEOMETRY column")
				return
			}
		} else {
			db.verifySpatial()
			return
		}
	}

	if err := db.execWithHardTimeout("LOAD spatial;"); err != nil {
		db.spatialAvailable = false
		logging.Warn().Err(err).Msg("Spatial extension installed but failed to load")
		return
	}

	db.verifySpatial()
}

// verifySpatial runs a probe query and records the result.
func (db *DB) verifySpatial() {
	if _, err := db.queryRowWithHardTimeout(spatialVerifyQuery); err != nil {
		db.spatialAvailable = false
		logging.Warn().Err(err).Msg("Spatial extension loaded but functions unavailable")
		return
	}
	db.spatialAvailable = true
	logging.Info().Msg("Spatial extension loaded")
}

// isExtensionInstalledLocally checks if an extension file exists in the
// local DuckDB extension directory, so network INSTALLs can be skipped
// when extensions are pre-installed.
func isExtensionInstalledLocally(extensionName string) bool {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return false
	}

	platform := runtime.GOOS + "_" + runtime.GOARCH
	extPath := filepath.Join(homeDir, ".duckdb", "extensions", duckdbVersion, platform, extensionName+".duckdb_extension")

	_, err = os.Stat(extPath)
	return err == nil
}

type execResult struct {
	err error
}

type queryResult struct {
	value interface{}
	err   error
}

// execWithHardTimeout executes a SQL statement with a goroutine-based hard
// timeout. DuckDB CGO calls don't respect context cancellation, so the
// timeout is enforced via select.
func (db *DB) execWithHardTimeout(query string) error {
	resultCh := make(chan execResult, 1)

	ctx, cancel := db.ensureContext(nil)
	defer cancel()

	go func() {
		_, err := db.conn.ExecContext(ctx, query)
		resultCh <- execResult{err: err}
	}()

	select {
	case result := <-resultCh:
		return result.err
	case <-time.After(extensionTimeout):
		return fmt.Errorf("operation timed out after %v", extensionTimeout)
	}
}

// queryRowWithHardTimeout executes a query scanning a single value with a
// hard timeout, for the same CGO reason as execWithHardTimeout.
func (db *DB) queryRowWithHardTimeout(query string) (interface{}, error) {
	resultCh := make(chan queryResult, 1)

	ctx, cancel := db.ensureContext(nil)
	defer cancel()

	go func() {
		var result interface{}
		err := db.conn.QueryRowContext(ctx, query).Scan(&result)
		resultCh <- queryResult{value: result, err: err}
	}()

	select {
	case result := <-resultCh:
		return result.value, result.err
	case <-time.After(extensionTimeout):
		return nil, fmt.Errorf("query timed out after %v", extensionTimeout)
	}
}

// execWithRetry executes a SQL statement with exponential backoff for
// transient network failures during extension downloads.
func (db *DB) execWithRetry(query string, config extensionRetryConfig) error {
	var lastErr error
	delay := config.BaseDelay

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if attempt > 0 {
			logging.Debug().
				Int("attempt", attempt).
				Dur("delay", delay).
				Str("query", query).
				Msg("Retrying extension operation")
			time.Sleep(delay)
			delay = time.Duration(float64(delay) * config.BackoffMult)
			if delay > config.MaxDelay {
				delay = config.MaxDelay
			}
		}

		err := db.execWithHardTimeout(query)
		if err == nil {
			return nil
		}
		lastErr = err

		errStr := err.Error()
		isRetryable := strings.Contains(errStr, "timed out") ||
			strings.Contains(errStr, "timeout") ||
			strings.Contains(errStr, "connection refused") ||
			strings.Contains(errStr, "503") ||
			strings.Contains(errStr, "temporary failure")
		if !isRetryable {
			return err
		}
	}

	return fmt.Errorf("extension operation failed after %d attempts: %w", config.MaxRetries+1, lastErr)
}
