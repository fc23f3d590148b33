// Package store provides SQLite-backed persistence for Tempora.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mkornelli/tempora/internal/models"
)

// ErrRunNotClaimable indicates the run is no longer queued and cannot
// be started.
var ErrRunNotClaimable = fmt.Errorf("run is not claimable")

// ErrRunNotQueued indicates the run is not in the queue and cannot be
// canceled there.
var ErrRunNotQueued = fmt.Errorf("run is not queued")

// Store provides access to the Tempora SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Open with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		script TEXT NOT NULL,
		path TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'queued',
		exit_code INTEGER,
		error TEXT,
		stdout_path TEXT,
		stderr_path TEXT,
		created_at DATETIME NOT NULL,
		started_at DATETIME,
		ended_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		run_id TEXT,
		action TEXT NOT NULL,
		inputs_hash TEXT NOT NULL,
		outcome TEXT NOT NULL,
		details TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_events_run_id ON events(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- Run Operations ---

// CreateRun inserts a new queued run.
func (s *Store) CreateRun(script, path string) (*models.Run, error) {
	run := &models.Run{
		ID:        uuid.New().String(),
		Script:    script,
		Path:      path,
		Status:    models.RunQueued,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.Exec(
		`INSERT INTO runs (id, script, path, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Script, run.Path, string(run.Status), run.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// GetRun retrieves a run by ID. Returns (nil, nil) when absent.
func (s *Store) GetRun(id string) (*models.Run, error) {
	row := s.db.QueryRow(
		`SELECT id, script, path, status, exit_code, error, stdout_path, stderr_path, created_at, started_at, ended_at
		 FROM runs WHERE id = ?`,
		id,
	)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest first, optionally filtered by status.
func (s *Store) ListRuns(status string, limit int) ([]models.Run, error) {
	query := `SELECT id, script, path, status, exit_code, error, stdout_path, stderr_path, created_at, started_at, ended_at FROM runs`
	var args []interface{}

	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// NextQueued returns the oldest queued run, or (nil, nil) when the
// queue is empty.
func (s *Store) NextQueued() (*models.Run, error) {
	row := s.db.QueryRow(
		`SELECT id, script, path, status, exit_code, error, stdout_path, stderr_path, created_at, started_at, ended_at
		 FROM runs WHERE status = ? ORDER BY created_at ASC, id ASC LIMIT 1`,
		string(models.RunQueued),
	)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query queued run: %w", err)
	}
	return run, nil
}

// MarkRunStarted transitions a queued run to running and records its
// output sinks. Returns ErrRunNotClaimable when the run left the queue
// in the meantime.
func (s *Store) MarkRunStarted(id, stdoutPath, stderrPath string, startedAt time.Time) error {
	result, err := s.db.Exec(
		`UPDATE runs SET status = ?, stdout_path = ?, stderr_path = ?, started_at = ? WHERE id = ? AND status = ?`,
		string(models.RunRunning), stdoutPath, stderrPath, startedAt, id, string(models.RunQueued),
	)
	if err != nil {
		return fmt.Errorf("mark run started: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if affected == 0 {
		return ErrRunNotClaimable
	}
	return nil
}

// FinishRun records the terminal status of a run.
func (s *Store) FinishRun(id string, status models.RunStatus, exitCode *int, errMsg string, endedAt time.Time) error {
	var code sql.NullInt64
	if exitCode != nil {
		code = sql.NullInt64{Int64: int64(*exitCode), Valid: true}
	}
	var msg sql.NullString
	if errMsg != "" {
		msg = sql.NullString{String: errMsg, Valid: true}
	}

	_, err := s.db.Exec(
		`UPDATE runs SET status = ?, exit_code = ?, error = ?, ended_at = ? WHERE id = ?`,
		string(status), code, msg, endedAt, id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// CancelQueued marks a still-queued run as killed. Returns
// ErrRunNotQueued when the run has already left the queue.
func (s *Store) CancelQueued(id string, endedAt time.Time) error {
	result, err := s.db.Exec(
		`UPDATE runs SET status = ?, ended_at = ? WHERE id = ? AND status = ?`,
		string(models.RunKilled), endedAt, id, string(models.RunQueued),
	)
	if err != nil {
		return fmt.Errorf("cancel queued run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if affected == 0 {
		return ErrRunNotQueued
	}
	return nil
}

// CountByStatus returns the number of runs with the given status.
func (s *Store) CountByStatus(status models.RunStatus) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM runs WHERE status = ?`, string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return count, nil
}

// PruneRuns deletes terminal runs beyond the newest keep, along with
// their events. Returns the number of runs removed.
func (s *Store) PruneRuns(keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		`SELECT id FROM runs
		 WHERE status IN (?, ?, ?)
		 ORDER BY created_at DESC, id DESC LIMIT -1 OFFSET ?`,
		string(models.RunFinished), string(models.RunKilled), string(models.RunError), keep,
	)
	if err != nil {
		return 0, fmt.Errorf("query prunable runs: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	for _, id := range ids {
		if _, err := tx.Exec(`DELETE FROM events WHERE run_id = ?`, id); err != nil {
			return 0, fmt.Errorf("delete events: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM runs WHERE id = ?`, id); err != nil {
			return 0, fmt.Errorf("delete run: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return len(ids), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*models.Run, error) {
	var (
		run      models.Run
		status   string
		exitCode sql.NullInt64
		errMsg   sql.NullString
		stdout   sql.NullString
		stderr   sql.NullString
		started  sql.NullTime
		ended    sql.NullTime
	)

	err := row.Scan(&run.ID, &run.Script, &run.Path, &status, &exitCode, &errMsg,
		&stdout, &stderr, &run.CreatedAt, &started, &ended)
	if err != nil {
		return nil, err
	}

	run.Status = models.RunStatus(status)
	if exitCode.Valid {
		code := int(exitCode.Int64)
		run.ExitCode = &code
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}
	if stdout.Valid {
		run.StdoutPath = stdout.String
	}
	if stderr.Valid {
		run.StderrPath = stderr.String
	}
	if started.Valid {
		t := started.Time
		run.StartedAt = &t
	}
	if ended.Valid {
		t := ended.Time
		run.EndedAt = &t
	}
	return &run, nil
}

// --- Event Operations ---

// WriteEvent appends one audit event.
func (s *Store) WriteEvent(runID, action, inputsHash, outcome, details string) (*models.Event, error) {
	event := &models.Event{
		ID:         uuid.New().String(),
		RunID:      runID,
		Action:     action,
		InputsHash: inputsHash,
		Outcome:    outcome,
		Details:    details,
		CreatedAt:  time.Now().UTC(),
	}

	var runRef sql.NullString
	if runID != "" {
		runRef = sql.NullString{String: runID, Valid: true}
	}

	_, err := s.db.Exec(
		`INSERT INTO events (id, run_id, action, inputs_hash, outcome, details, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID, runRef, event.Action, event.InputsHash, event.Outcome, event.Details, event.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return event, nil
}

// ListEventsForRun returns the audit trail of one run, oldest first.
func (s *Store) ListEventsForRun(runID string) ([]models.Event, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, action, inputs_hash, outcome, details, created_at FROM events WHERE run_id = ? ORDER BY created_at ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var event models.Event
		var runRef sql.NullString
		var details sql.NullString
		if err := rows.Scan(&event.ID, &runRef, &event.Action, &event.InputsHash, &event.Outcome, &details, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if runRef.Valid {
			event.RunID = runRef.String
		}
		if details.Valid {
			event.Details = details.String
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
