package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ephyslab/rigsync/internal/align"
	"github.com/ephyslab/rigsync/internal/rec"
)

//go:embed schema.sql
var schemaSQL string

const currentSchemaVersion = 1

// RunLog records alignment runs and per-stream outcomes in SQLite.
type RunLog struct {
	db *sql.DB
}

// OpenRunLog creates or opens the run-log database at path.
// WAL mode, a busy timeout, and foreign keys are applied, and the schema
// is created when missing. Safe to call repeatedly on the same path.
func OpenRunLog(path string) (*RunLog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: opening run log: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: connecting to run log: %w", err)
	}

	// The writer is strictly sequential; a single connection avoids
	// SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: applying %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: applying run-log schema: %w", err)
	}
	if err := ensureVersion(db); err != nil {
		db.Close()
		return nil, err
	}
	return &RunLog{db: db}, nil
}

func ensureVersion(db *sql.DB) error {
	var version int
	err := db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		_, err = db.Exec("INSERT INTO schema_version (version) VALUES (?)", currentSchemaVersion)
		if err != nil {
			return fmt.Errorf("store: recording schema version: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("store: reading schema version: %w", err)
	case version != currentSchemaVersion:
		return fmt.Errorf("store: run log schema version %d, expected %d", version, currentSchemaVersion)
	}
	return nil
}

// Close closes the database.
func (l *RunLog) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// BeginRun inserts a run row and returns its time-ordered ID.
func (l *RunLog) BeginRun(ctx context.Context, directory, mode string) (string, error) {
	id := uuid.Must(uuid.NewV7()).String()
	_, err := l.db.ExecContext(ctx,
		"INSERT INTO runs (id, directory, mode, status, started_at) VALUES (?, ?, ?, 'running', ?)",
		id, directory, mode, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("store: beginning run: %w", err)
	}
	return id, nil
}

// FinishRun marks the run done. ok selects status 'ok' or 'failed'.
func (l *RunLog) FinishRun(ctx context.Context, runID string, ok bool) error {
	status := "ok"
	if !ok {
		status = "failed"
	}
	_, err := l.db.ExecContext(ctx,
		"UPDATE runs SET status = ?, finished_at = ? WHERE id = ?",
		status, time.Now().UTC().Format(time.RFC3339), runID)
	if err != nil {
		return fmt.Errorf("store: finishing run %s: %w", runID, err)
	}
	return nil
}

// RecordResult writes every stream outcome of one recording.
func (l *RunLog) RecordResult(ctx context.Context, runID string, result align.RecordingResult) error {
	for _, s := range result.Streams {
		msg := ""
		if s.Err != nil {
			msg = s.Err.Error()
		}
		_, err := l.db.ExecContext(ctx, `
			INSERT INTO stream_results
				(run_id, record_node, experiment_idx, recording_idx, stream_name,
				 status, error_code, error_message, anchor_count, ref_anchor_count, discontinuities)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, result.Key.RecordNode, result.Key.ExperimentIndex, result.Key.RecordingIndex,
			s.StreamName, string(s.Status), string(s.Code), msg,
			s.AnchorCount, s.RefAnchorCount, s.Discontinuities)
		if err != nil {
			return fmt.Errorf("store: recording result for %s/%s: %w", result.Key.String(), s.StreamName, err)
		}
	}
	return nil
}

// StreamOutcome is one persisted stream result.
type StreamOutcome struct {
	Key        rec.RecordingKey
	StreamName string
	Status     string
	ErrorCode  string
	ErrorMsg   string
}

// RunOutcomes returns the stream outcomes of a run, in insertion order.
func (l *RunLog) RunOutcomes(ctx context.Context, runID string) ([]StreamOutcome, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT record_node, experiment_idx, recording_idx, stream_name, status, error_code, error_message
		FROM stream_results WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: querying run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []StreamOutcome
	for rows.Next() {
		var o StreamOutcome
		if err := rows.Scan(&o.Key.RecordNode, &o.Key.ExperimentIndex, &o.Key.RecordingIndex,
			&o.StreamName, &o.Status, &o.ErrorCode, &o.ErrorMsg); err != nil {
			return nil, fmt.Errorf("store: scanning run %s: %w", runID, err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
