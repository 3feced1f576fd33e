package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/folio/internal/models"
)

// SQLiteLedger implements Ledger using SQLite.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteLedger{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		duration_ms INTEGER NOT NULL,
		pages INTEGER NOT NULL,
		assets INTEGER NOT NULL,
		removed INTEGER NOT NULL,
		warnings INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_builds_started_at ON builds(started_at);

	CREATE TABLE IF NOT EXISTS build_files (
		build_id TEXT NOT NULL,
		path TEXT NOT NULL,
		PRIMARY KEY (build_id, path),
		FOREIGN KEY (build_id) REFERENCES builds(id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// RecordBuild stores a build and its file list in one transaction.
func (s *SQLiteLedger) RecordBuild(ctx context.Context, report *models.BuildReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO builds (id, started_at, duration_ms, pages, assets, removed, warnings)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.BuildID, report.StartedAt.UTC(), report.Duration, len(report.Pages),
		report.Assets, len(report.Removed), report.Warnings,
	)
	if err != nil {
		return fmt.Errorf("failed to insert build: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO build_files (build_id, path) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, p := range report.Pages {
		if _, err := stmt.ExecContext(ctx, report.BuildID, p); err != nil {
			return fmt.Errorf("failed to insert build file: %w", err)
		}
	}
	return tx.Commit()
}

const buildColumns = `id, started_at, duration_ms, pages, assets, removed, warnings`

func scanBuild(row interface{ Scan(...any) error }) (*models.BuildRecord, error) {
	var b models.BuildRecord
	var started time.Time
	if err := row.Scan(&b.ID, &started, &b.Duration, &b.Pages, &b.Assets, &b.Removed, &b.Warnings); err != nil {
		return nil, err
	}
	b.StartedAt = started.UTC()
	return &b, nil
}

// LastBuild returns the most recent build, or nil when none is recorded.
func (s *SQLiteLedger) LastBuild(ctx context.Context) (*models.BuildRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+buildColumns+` FROM builds ORDER BY started_at DESC, rowid DESC LIMIT 1`)
	b, err := scanBuild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

// ListBuilds returns up to limit builds, newest first.
func (s *SQLiteLedger) ListBuilds(ctx context.Context, limit int) ([]*models.BuildRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+buildColumns+` FROM builds ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var builds []*models.BuildRecord
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		builds = append(builds, b)
	}
	return builds, rows.Err()
}

// BuildFiles returns the files a build produced, sorted.
func (s *SQLiteLedger) BuildFiles(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path FROM build_files WHERE build_id = ? ORDER BY path`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// CountBuilds returns the number of recorded builds.
func (s *SQLiteLedger) CountBuilds(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM builds`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}
