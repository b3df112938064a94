package store

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"docnerd/internal/errs"
	"docnerd/internal/logging"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// CurrentSchemaVersion is the highest numbered migration shipped.
const CurrentSchemaVersion = 3

const busyRetryAttempts = 5
const busyRetryDelay = 200 * time.Millisecond

// RunMigrations applies every migration file above the currently installed
// schema version, in numeric order, each inside its own transaction with
// bounded retry on SQLITE_BUSY.
func RunMigrations(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "RunMigrations")
	defer timer.Stop()

	if err := ensureMetaTable(db); err != nil {
		return errs.NewSchemaMigrationError("failed to create schema meta table", err)
	}

	installed, err := installedVersion(db)
	if err != nil {
		return errs.NewSchemaMigrationError("failed to read installed schema version", err)
	}

	names, err := sortedMigrationNames()
	if err != nil {
		return errs.NewSchemaMigrationError("failed to list migrations", err)
	}

	for _, name := range names {
		version, err := migrationVersion(name)
		if err != nil {
			return errs.NewSchemaMigrationError("malformed migration filename: "+name, err)
		}
		if version <= installed {
			continue
		}

		sqlBytes, err := migrationFiles.ReadFile("migrations/" + name)
		if err != nil {
			return errs.NewSchemaMigrationError("failed to read migration "+name, err)
		}

		if err := applyWithRetry(db, string(sqlBytes)); err != nil {
			return errs.NewSchemaMigrationError("migration "+name+" failed", err)
		}

		if err := setInstalledVersion(db, version); err != nil {
			return errs.NewSchemaMigrationError("failed to record migration "+name, err)
		}

		logging.Get(logging.CategoryStore).Info("applied migration %s (schema version %d)", name, version)
		installed = version
	}

	return nil
}

func ensureMetaTable(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_meta (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		version INTEGER NOT NULL DEFAULT 0
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`INSERT OR IGNORE INTO schema_meta (id, version) VALUES (1, 0)`)
	return err
}

func installedVersion(db *sql.DB) (int, error) {
	var v int
	err := db.QueryRow(`SELECT version FROM schema_meta WHERE id = 1`).Scan(&v)
	return v, err
}

func setInstalledVersion(db *sql.DB, version int) error {
	_, err := db.Exec(`UPDATE schema_meta SET version = ? WHERE id = 1`, version)
	return err
}

func sortedMigrationNames() ([]string, error) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func migrationVersion(name string) (int, error) {
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return 0, fmt.Errorf("expected NNNN_name.sql, got %s", name)
	}
	return strconv.Atoi(prefix)
}

func applyWithRetry(db *sql.DB, script string) error {
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		tx, err := db.Begin()
		if err != nil {
			lastErr = err
			if isBusyErr(err) {
				time.Sleep(busyRetryDelay)
				continue
			}
			return err
		}

		if _, err := tx.Exec(script); err != nil {
			tx.Rollback()
			lastErr = err
			if isBusyErr(err) {
				time.Sleep(busyRetryDelay)
				continue
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			lastErr = err
			if isBusyErr(err) {
				time.Sleep(busyRetryDelay)
				continue
			}
			return err
		}
		return nil
	}
	return lastErr
}

func isBusyErr(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "busy")
}
