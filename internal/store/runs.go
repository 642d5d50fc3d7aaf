package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// SyncRun is one journal entry for a pipeline run.
type SyncRun struct {
	ID              string `json:"id"`
	Date            string `json:"date"`
	TerminalAddress string `json:"terminal_address"`
	StartedAt       string `json:"started_at"`
	EndedAt         string `json:"ended_at,omitempty"`
	Status          string `json:"status"`
	EventsFetched   int    `json:"events_fetched"`
	Records         int    `json:"records"`
	Delivered       bool   `json:"delivered"`
	Attempts        int    `json:"attempts"`
	ErrorMsg        string `json:"error_msg,omitempty"`
}

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// AddressChange records one healed terminal address.
type AddressChange struct {
	Address    string `json:"address"`
	Previous   string `json:"previous"`
	DeviceName string `json:"device_name,omitempty"`
	ChangedAt  string `json:"changed_at"`
}

// Migrations is the full schema, applied by the pipeline at startup.
var Migrations = []Migration{
	{
		Version:     1,
		Description: "sync run journal",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE sync_runs (
					id               TEXT PRIMARY KEY,
					date             TEXT NOT NULL,
					terminal_address TEXT NOT NULL DEFAULT '',
					started_at       TEXT NOT NULL,
					ended_at         TEXT,
					status           TEXT NOT NULL,
					events_fetched   INTEGER NOT NULL DEFAULT 0,
					records          INTEGER NOT NULL DEFAULT 0,
					delivered        INTEGER NOT NULL DEFAULT 0,
					attempts         INTEGER NOT NULL DEFAULT 0,
					error_msg        TEXT NOT NULL DEFAULT ''
				)`)
			return err
		},
	},
	{
		Version:     2,
		Description: "terminal address history",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE terminal_addresses (
					address     TEXT NOT NULL,
					previous    TEXT NOT NULL DEFAULT '',
					device_name TEXT NOT NULL DEFAULT '',
					changed_at  TEXT NOT NULL
				)`)
			return err
		},
	},
}

// RunRepository provides access to the sync-run journal.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a RunRepository. The sync_runs table must
// already exist (created by Migrations).
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run in the running state. If run.ID is empty, a
// UUID is generated.
func (r *RunRepository) Create(ctx context.Context, run *SyncRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt == "" {
		run.StartedAt = time.Now().UTC().Format(time.RFC3339)
	}
	if run.Status == "" {
		run.Status = RunStatusRunning
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, date, terminal_address, started_at, status)
		VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Date, run.TerminalAddress, run.StartedAt, run.Status,
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// Finish records the outcome of a run.
func (r *RunRepository) Finish(ctx context.Context, run *SyncRun) error {
	if run.EndedAt == "" {
		run.EndedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE sync_runs
		SET ended_at = ?, status = ?, events_fetched = ?, records = ?,
		    delivered = ?, attempts = ?, error_msg = ?, terminal_address = ?
		WHERE id = ?`,
		run.EndedAt, run.Status, run.EventsFetched, run.Records,
		run.Delivered, run.Attempts, run.ErrorMsg, run.TerminalAddress, run.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run %q: %w", run.ID, err)
	}
	return nil
}

// Get returns a single run by ID.
func (r *RunRepository) Get(ctx context.Context, id string) (*SyncRun, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx, `
		SELECT id, date, terminal_address, started_at, ended_at, status,
		       events_fetched, records, delivered, attempts, error_msg
		FROM sync_runs WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get run %q: %w", id, err)
	}
	return run, nil
}

// Latest returns the most recently started run, or ErrNotFound when the
// journal is empty.
func (r *RunRepository) Latest(ctx context.Context) (*SyncRun, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx, `
		SELECT id, date, terminal_address, started_at, ended_at, status,
		       events_fetched, records, delivered, attempts, error_msg
		FROM sync_runs ORDER BY started_at DESC, id DESC LIMIT 1`))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return run, nil
}

// List returns runs ordered by start time descending, newest first.
func (r *RunRepository) List(ctx context.Context, limit int) ([]SyncRun, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, date, terminal_address, started_at, ended_at, status,
		       events_fetched, records, delivered, attempts, error_msg
		FROM sync_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []SyncRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("run row: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*SyncRun, error) {
	var run SyncRun
	var endedAt sql.NullString
	if err := row.Scan(&run.ID, &run.Date, &run.TerminalAddress, &run.StartedAt,
		&endedAt, &run.Status, &run.EventsFetched, &run.Records,
		&run.Delivered, &run.Attempts, &run.ErrorMsg); err != nil {
		return nil, err
	}
	if endedAt.Valid {
		run.EndedAt = endedAt.String
	}
	return &run, nil
}

// AddressRepository records healed terminal addresses.
type AddressRepository struct {
	db *sql.DB
}

// NewAddressRepository creates an AddressRepository.
func NewAddressRepository(db *sql.DB) *AddressRepository {
	return &AddressRepository{db: db}
}

// Record appends one address change to the history.
func (r *AddressRepository) Record(ctx context.Context, change AddressChange) error {
	if change.ChangedAt == "" {
		change.ChangedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO terminal_addresses (address, previous, device_name, changed_at)
		VALUES (?, ?, ?, ?)`,
		change.Address, change.Previous, change.DeviceName, change.ChangedAt,
	)
	if err != nil {
		return fmt.Errorf("record address change: %w", err)
	}
	return nil
}

// History returns address changes, newest first.
func (r *AddressRepository) History(ctx context.Context, limit int) ([]AddressChange, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT address, previous, device_name, changed_at
		FROM terminal_addresses ORDER BY changed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("address history: %w", err)
	}
	defer rows.Close()

	changes := []AddressChange{}
	for rows.Next() {
		var change AddressChange
		if err := rows.Scan(&change.Address, &change.Previous, &change.DeviceName, &change.ChangedAt); err != nil {
			return nil, fmt.Errorf("address row: %w", err)
		}
		changes = append(changes, change)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate addresses: %w", err)
	}
	return changes, nil
}
