// Package history persists past runs and their per-stage outcomes in a
// local sqlite database, so `qgate history` can answer "when did this gate
// last pass" without trawling old report files.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/qgate/qgate/internal/report"
)

// Store wraps the run-history database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			status TEXT NOT NULL,
			mode TEXT NOT NULL,
			seed INTEGER NOT NULL,
			issues INTEGER NOT NULL,
			warnings INTEGER NOT NULL,
			started_at DATETIME NOT NULL,
			duration TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS stage_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			exit_code INTEGER NOT NULL,
			timed_out INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			metric_kind TEXT NOT NULL,
			metric_value REAL NOT NULL,
			not_run INTEGER NOT NULL,
			duration TEXT NOT NULL,
			FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_stage_results_run_id ON stage_results(run_id)`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("initializing history schema: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Run is one recorded pipeline execution.
type Run struct {
	ID        int64
	Status    string
	Mode      string
	Seed      int64
	Issues    int
	Warnings  int
	StartedAt time.Time
	Duration  string
}

// RecordRun stores the report and its stage rows, returning the run id.
func (s *Store) RecordRun(rep *report.ExecutionReport) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO runs (status, mode, seed, issues, warnings, started_at, duration) VALUES (?, ?, ?, ?, ?, ?, ?)",
		string(rep.Overall), rep.Mode, rep.Seed, len(rep.Issues), len(rep.Warnings),
		rep.Timestamp, rep.Duration.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("recording run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run id: %w", err)
	}

	for _, sr := range rep.PerStage {
		_, err := s.db.Exec(
			`INSERT INTO stage_results
			 (run_id, name, exit_code, timed_out, skipped, metric_kind, metric_value, not_run, duration)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, sr.Name, sr.ExitCode, sr.TimedOut, sr.Skipped,
			string(sr.Metric.Kind), sr.Metric.Value, sr.Metric.NotRun, sr.Duration.String(),
		)
		if err != nil {
			return 0, fmt.Errorf("recording stage %s: %w", sr.Name, err)
		}
	}
	return id, nil
}

// RecentRuns returns the newest runs first.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(
		"SELECT id, status, mode, seed, issues, warnings, started_at, duration FROM runs ORDER BY started_at DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Status, &r.Mode, &r.Seed, &r.Issues, &r.Warnings, &r.StartedAt, &r.Duration); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// StageRow is one stage outcome from a recorded run.
type StageRow struct {
	Name        string
	ExitCode    int
	TimedOut    bool
	Skipped     bool
	MetricKind  string
	MetricValue float64
	NotRun      bool
	Duration    string
}

// StagesForRun returns a run's stage rows in insertion (pipeline) order.
func (s *Store) StagesForRun(runID int64) ([]StageRow, error) {
	rows, err := s.db.Query(
		`SELECT name, exit_code, timed_out, skipped, metric_kind, metric_value, not_run, duration
		 FROM stage_results WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying stage results: %w", err)
	}
	defer rows.Close()

	var out []StageRow
	for rows.Next() {
		var sr StageRow
		if err := rows.Scan(&sr.Name, &sr.ExitCode, &sr.TimedOut, &sr.Skipped, &sr.MetricKind, &sr.MetricValue, &sr.NotRun, &sr.Duration); err != nil {
			return nil, fmt.Errorf("scanning stage result: %w", err)
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}
