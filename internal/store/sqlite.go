package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // SQLite driver
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// SQLiteRunStore implements RunStore on a SQLite database.
type SQLiteRunStore struct {
	mu     sync.RWMutex
	db     *sqlx.DB
	dbPath string
}

// NewSQLiteRunStore opens or creates the database at dbPath, creating its
// parent directory when needed.
func NewSQLiteRunStore(dbPath string) (*SQLiteRunStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteRunStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteRunStore) Path() string { return s.dbPath }

// SaveRun writes run and results in one transaction. Saving a run ID twice
// replaces the earlier results.
func (s *SQLiteRunStore) SaveRun(ctx context.Context, run Run, results []Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("failed to clear results: %w", err)
	}
	if _, err := tx.NamedExecContext(ctx, `
		INSERT OR REPLACE INTO runs (id, source, total, succeeded, failed, started_at, elapsed_ms, config_yaml)
		VALUES (:id, :source, :total, :succeeded, :failed, :started_at, :elapsed_ms, :config_yaml)`,
		run); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, r := range results {
		r.RunID = run.ID
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO results (run_id, case_id, position, chart, strength_score, strength_label, wealth_index, error, report_json)
			VALUES (:run_id, :case_id, :position, :chart, :strength_score, :strength_label, :wealth_index, :error, :report_json)`,
			r); err != nil {
			return fmt.Errorf("failed to insert result %s: %w", r.CaseID, err)
		}
	}
	return tx.Commit()
}

// GetRun returns a run by ID.
func (s *SQLiteRunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var run Run
	err := s.db.GetContext(ctx, &run, `SELECT * FROM runs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// ListRuns returns the most recent runs first.
func (s *SQLiteRunStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	runs := []Run{}
	if err := s.db.SelectContext(ctx, &runs,
		`SELECT * FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// Results returns a run's results in input order.
func (s *SQLiteRunStore) Results(ctx context.Context, runID string) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := []Result{}
	if err := s.db.SelectContext(ctx, &results,
		`SELECT * FROM results WHERE run_id = ? ORDER BY position`, runID); err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	return results, nil
}

// Close closes the database.
func (s *SQLiteRunStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

var _ RunStore = (*SQLiteRunStore)(nil)
