// Package pipeline orchestrates the full fragmentation run: extract,
// chase, derive, extract paths, select a hitting set, transfer, and
// verify (C3-C8 plus A.5), end to end over one rules/roots input pair.
package pipeline

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

// Recorder tracks prior fragmentation runs in a fragment_runs table, the
// same idempotent-migration pattern pkg/migrator used in the source
// (ComputeSchemaChecksum / shouldSkipMigration): a run is skipped if its
// rules+roots checksum matches the last successfully completed run, unless
// the caller forces a re-run (spec.md §9, "idempotent reruns").
type Recorder struct {
	db *sql.DB
}

// NewRecorder wraps db; EnsureTable must be called once before use.
func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// EnsureTable creates the fragment_runs bookkeeping table if absent.
func (r *Recorder) EnsureTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS fragment_runs (
			id             BIGSERIAL PRIMARY KEY,
			checksum       TEXT NOT NULL,
			started_at     TIMESTAMPTZ NOT NULL,
			completed_at   TIMESTAMPTZ,
			status         TEXT NOT NULL,
			moved_initial  BIGINT NOT NULL DEFAULT 0,
			moved_transfer BIGINT NOT NULL DEFAULT 0,
			detail         TEXT
		)`)
	if err != nil {
		return fmt.Errorf("ensuring fragment_runs table: %w", err)
	}
	return nil
}

// Checksum returns the hex sha256 of the concatenated rules and roots file
// contents, the unit of change this package treats as "the same input".
func Checksum(rulesBytes, rootsBytes []byte) string {
	h := sha256.New()
	h.Write(rulesBytes)
	h.Write([]byte{0})
	h.Write(rootsBytes)
	return hex.EncodeToString(h.Sum(nil))
}

// ShouldSkip reports whether the last completed run already processed this
// exact checksum, so a repeat invocation with unchanged input is a no-op.
func (r *Recorder) ShouldSkip(ctx context.Context, checksum string) (bool, error) {
	var last string
	err := r.db.QueryRowContext(ctx, `
		SELECT checksum FROM fragment_runs
		WHERE status = 'completed'
		ORDER BY completed_at DESC
		LIMIT 1`).Scan(&last)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking last run: %w", err)
	}
	return last == checksum, nil
}

// RunRecord is one row of the fragment_runs bookkeeping table.
type RunRecord struct {
	ID            int64
	Checksum      string
	StartedAt     time.Time
	CompletedAt   sql.NullTime
	Status        string
	MovedInitial  int64
	MovedTransfer int64
	Detail        sql.NullString
}

// LastRun returns the most recently started run, or nil if none exist.
func (r *Recorder) LastRun(ctx context.Context) (*RunRecord, error) {
	var rec RunRecord
	err := r.db.QueryRowContext(ctx, `
		SELECT id, checksum, started_at, completed_at, status, moved_initial, moved_transfer, detail
		FROM fragment_runs
		ORDER BY started_at DESC
		LIMIT 1`).Scan(&rec.ID, &rec.Checksum, &rec.StartedAt, &rec.CompletedAt, &rec.Status, &rec.MovedInitial, &rec.MovedTransfer, &rec.Detail)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching last run: %w", err)
	}
	return &rec, nil
}

// Begin records the start of a run and returns its id.
func (r *Recorder) Begin(ctx context.Context, checksum string, startedAt time.Time) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO fragment_runs (checksum, started_at, status)
		VALUES ($1, $2, 'running')
		RETURNING id`, checksum, startedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("recording run start: %w", err)
	}
	return id, nil
}

// Complete marks a run finished, recording the movement counts.
func (r *Recorder) Complete(ctx context.Context, id int64, completedAt time.Time, movedInitial, movedTransfer int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE fragment_runs
		SET status = 'completed', completed_at = $2, moved_initial = $3, moved_transfer = $4
		WHERE id = $1`, id, completedAt, movedInitial, movedTransfer)
	if err != nil {
		return fmt.Errorf("recording run completion: %w", err)
	}
	return nil
}

// Fail marks a run failed, recording detail for later diagnosis.
func (r *Recorder) Fail(ctx context.Context, id int64, completedAt time.Time, detail string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE fragment_runs
		SET status = 'failed', completed_at = $2, detail = $3
		WHERE id = $1`, id, completedAt, detail)
	if err != nil {
		return fmt.Errorf("recording run failure: %w", err)
	}
	return nil
}
