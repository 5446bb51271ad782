// Package persistence provides the SQLite-backed run store: task runs, the
// state-handler passes inside each run, and the tool executions they made.
// The handle is injected where needed, never global.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"codepilot/pkg/logx"
)

// CurrentSchemaVersion defines the current schema version for migration support.
const CurrentSchemaVersion = 1

// Store owns one SQLite database of run history.
type Store struct {
	db     *sql.DB
	logger *logx.Logger
}

// Open opens (or creates) the run store at path and brings the schema up to
// the current version.
func Open(path string) (*Store, error) {
	// modernc passes _pragma values through to PRAGMA statements; these
	// apply to every new connection.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initializeSchemaWithMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// SQLite supports one writer; a single connection also keeps Exec'd
	// pragmas in force.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	logger := logx.NewLogger("persistence")
	logger.Info("📦 Run store opened: %s", path)
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// initializeSchemaWithMigrations ensures the database schema is at the
// current version.
func initializeSchemaWithMigrations(db *sql.DB) error {
	currentVersion, err := getSchemaVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	switch {
	case currentVersion == 0:
		if err := createSchema(db); err != nil {
			return err
		}
		return setSchemaVersion(db, CurrentSchemaVersion)
	case currentVersion == CurrentSchemaVersion:
		return nil
	case currentVersion > CurrentSchemaVersion:
		return fmt.Errorf("database schema version %d is newer than supported version %d", currentVersion, CurrentSchemaVersion)
	default:
		return runMigrations(db, currentVersion, CurrentSchemaVersion)
	}
}

// runMigrations applies database migrations from current version to target
// version. Migration steps land here as the schema evolves.
func runMigrations(db *sql.DB, fromVersion, toVersion int) error {
	for version := fromVersion + 1; version <= toVersion; version++ {
		if err := runMigration(db, version); err != nil {
			return fmt.Errorf("migration to version %d failed: %w", version, err)
		}
		if err := setSchemaVersion(db, version); err != nil {
			return fmt.Errorf("failed to update schema version to %d: %w", version, err)
		}
	}
	return nil
}

func runMigration(_ *sql.DB, version int) error {
	return fmt.Errorf("unknown migration version: %d", version)
}

func createSchema(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}

	tables := []string{
		`CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,

		`CREATE TABLE IF NOT EXISTS task_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'running' CHECK (status IN ('running','complete','failed')),
			success INTEGER NOT NULL DEFAULT 0,
			iterations INTEGER NOT NULL DEFAULT 0,
			plan TEXT,
			error TEXT,
			started_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			finished_at DATETIME
		)`,

		`CREATE TABLE IF NOT EXISTS run_passes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER NOT NULL REFERENCES task_runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			state TEXT NOT NULL,
			outcome TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			UNIQUE (run_id, seq)
		)`,

		`CREATE TABLE IF NOT EXISTS tool_executions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER NOT NULL REFERENCES task_runs(id) ON DELETE CASCADE,
			tool TEXT NOT NULL,
			success INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			ts DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,

		`CREATE INDEX IF NOT EXISTS idx_run_passes_run ON run_passes(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tool_executions_run ON tool_executions(run_id)`,
	}
	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

func getSchemaVersion(db *sql.DB) (int, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	)`)
	if err != nil {
		return 0, fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var version int
	err = db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("schema version scan error: %w", err)
	}
	return version, nil
}

func setSchemaVersion(db *sql.DB, version int) error {
	if _, err := db.Exec("INSERT OR REPLACE INTO schema_version (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("database exec error: %w", err)
	}
	return nil
}

// StartRun inserts a task run in 'running' state and returns its id.
func (s *Store) StartRun(ctx context.Context, task string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "INSERT INTO task_runs (task) VALUES (?)", task)
	if err != nil {
		return 0, fmt.Errorf("failed to insert task run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}
	return id, nil
}

// RecordPass stores one state-handler pass of a run.
func (s *Store) RecordPass(ctx context.Context, runID int64, seq int, state, outcome string, duration time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO run_passes (run_id, seq, state, outcome, duration_ms) VALUES (?, ?, ?, ?, ?)",
		runID, seq, state, outcome, duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to record pass: %w", err)
	}
	return nil
}

// RecordToolExecution stores one tool call made during a run.
func (s *Store) RecordToolExecution(ctx context.Context, runID int64, tool string, success bool, duration time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO tool_executions (run_id, tool, success, duration_ms) VALUES (?, ?, ?, ?)",
		runID, tool, success, duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to record tool execution: %w", err)
	}
	return nil
}

// FinishRun writes the final outcome onto the task_runs row.
func (s *Store) FinishRun(ctx context.Context, runID int64, status string, success bool, iterations int, plan, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE task_runs
		 SET status = ?, success = ?, iterations = ?, plan = ?, error = ?,
		     finished_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')
		 WHERE id = ?`,
		status, success, iterations, plan, errMsg, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// RunSummary is one row of task-run history.
type RunSummary struct {
	ID         int64
	Task       string
	Status     string
	Success    bool
	Iterations int
	Error      string
	StartedAt  string
	FinishedAt string
}

// PassSummary is one recorded state-handler pass.
type PassSummary struct {
	Seq        int
	State      string
	Outcome    string
	DurationMS int64
}

// ListRuns returns the most recent task runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task, status, success, iterations, COALESCE(error, ''),
		        started_at, COALESCE(finished_at, '')
		 FROM task_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Task, &r.Status, &r.Success, &r.Iterations, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("run rows error: %w", err)
	}
	return runs, nil
}

// GetRunPasses returns the passes of one run in execution order.
func (s *Store) GetRunPasses(ctx context.Context, runID int64) ([]PassSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT seq, state, outcome, duration_ms FROM run_passes WHERE run_id = ? ORDER BY seq", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query passes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var passes []PassSummary
	for rows.Next() {
		var p PassSummary
		if err := rows.Scan(&p.Seq, &p.State, &p.Outcome, &p.DurationMS); err != nil {
			return nil, fmt.Errorf("failed to scan pass: %w", err)
		}
		passes = append(passes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pass rows error: %w", err)
	}
	return passes, nil
}

// CountToolExecutions returns how many tool calls a run made.
func (s *Store) CountToolExecutions(ctx context.Context, runID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tool_executions WHERE run_id = ?", runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count tool executions: %w", err)
	}
	return n, nil
}
