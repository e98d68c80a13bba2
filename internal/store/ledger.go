package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	input_key   TEXT NOT NULL DEFAULT '',
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'running',
	error       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS run_outputs (
	run_id    TEXT NOT NULL,
	name      TEXT NOT NULL,
	path      TEXT NOT NULL DEFAULT '',
	row_count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, name)
);
`

// Run statuses.
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusFailed  = "failed"
)

// Run is one ledger entry.
type Run struct {
	ID         string `db:"run_id"`
	InputKey   string `db:"input_key"`
	StartedAt  string `db:"started_at"`
	FinishedAt string `db:"finished_at"`
	Status     string `db:"status"`
	Error      string `db:"error"`
}

// Output is one row-set produced by a run.
type Output struct {
	RunID string `db:"run_id"`
	Name  string `db:"name"`
	Path  string `db:"path"`
	Rows  int64  `db:"row_count"`
}

// Ledger records pipeline runs in SQLite.
type Ledger struct {
	db  *sqlx.DB
	now func() time.Time
}

// OpenLedger opens or creates the ledger database at path.
func OpenLedger(path string) (*Ledger, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(ledgerSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Ledger{db: db, now: time.Now}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) stamp() string {
	return l.now().UTC().Format(time.RFC3339Nano)
}

// Begin records the start of run id over the inputs identified by inputKey.
func (l *Ledger) Begin(ctx context.Context, id uuid.UUID, inputKey string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, input_key, started_at, status) VALUES (?, ?, ?, ?)`,
		id.String(), inputKey, l.stamp(), StatusRunning)
	if err != nil {
		return fmt.Errorf("begin run %s: %w", id, err)
	}
	return nil
}

// RecordOutput stores the row count and path of one output of run id.
func (l *Ledger) RecordOutput(ctx context.Context, id uuid.UUID, name, path string, rows int) error {
	_, err := l.db.NamedExecContext(ctx,
		`INSERT OR REPLACE INTO run_outputs (run_id, name, path, row_count) VALUES (:run_id, :name, :path, :row_count)`,
		Output{RunID: id.String(), Name: name, Path: path, Rows: int64(rows)})
	if err != nil {
		return fmt.Errorf("record output %s: %w", name, err)
	}
	return nil
}

// Finish closes run id, marking it failed when runErr is non-nil.
func (l *Ledger) Finish(ctx context.Context, id uuid.UUID, runErr error) error {
	status, msg := StatusOK, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	_, err := l.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, error = ? WHERE run_id = ?`,
		l.stamp(), status, msg, id.String())
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	return nil
}

// Get returns run id.
func (l *Ledger) Get(ctx context.Context, id uuid.UUID) (Run, error) {
	var r Run
	if err := l.db.GetContext(ctx, &r, `SELECT * FROM runs WHERE run_id = ?`, id.String()); err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return r, nil
}

// Outputs lists the outputs of run id by name.
func (l *Ledger) Outputs(ctx context.Context, id uuid.UUID) ([]Output, error) {
	var out []Output
	if err := l.db.SelectContext(ctx, &out, `SELECT * FROM run_outputs WHERE run_id = ? ORDER BY name`, id.String()); err != nil {
		return nil, fmt.Errorf("list outputs %s: %w", id, err)
	}
	return out, nil
}

// Recent returns the latest runs, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Run, error) {
	var runs []Run
	if err := l.db.SelectContext(ctx, &runs, `SELECT * FROM runs ORDER BY started_at DESC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}
