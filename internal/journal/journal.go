// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package journal persists a per-run record of pipeline step outcomes to a
// local SQLite database for post-mortem support.
//
// The journal is write-only during a run: nothing in the pipeline ever reads
// it back, and it carries no resume or rollback semantics. Journal failures
// are reported to the caller but are not meant to abort an installation.
package journal

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP,
	success     INTEGER
);
CREATE TABLE IF NOT EXISTS steps (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	seq         INTEGER NOT NULL,
	name        TEXT NOT NULL,
	exit_code   INTEGER NOT NULL,
	message     TEXT NOT NULL,
	recorded_at TIMESTAMP NOT NULL,
	PRIMARY KEY (run_id, seq)
);
`

// =============================================================================
// JOURNAL
// =============================================================================

// Journal records one installer run.
type Journal struct {
	db    *sql.DB
	runID string
}

// Open opens (creating if needed) the journal database at path and starts a
// new run record.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize journal schema: %w", err)
	}

	j := &Journal{db: db, runID: uuid.New().String()}
	if _, err := db.Exec(
		`INSERT INTO runs (id, started_at) VALUES (?, ?)`,
		j.runID, time.Now().UTC(),
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("record run start: %w", err)
	}
	return j, nil
}

// RunID returns the identifier of the current run.
func (j *Journal) RunID() string {
	return j.runID
}

// RecordStep appends one step outcome to the current run.
func (j *Journal) RecordStep(seq int, name string, exitCode int, message string) error {
	_, err := j.db.Exec(
		`INSERT INTO steps (run_id, seq, name, exit_code, message, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		j.runID, seq, name, exitCode, message, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record step %s: %w", name, err)
	}
	return nil
}

// Finish marks the run as ended with the given outcome.
func (j *Journal) Finish(success bool) error {
	_, err := j.db.Exec(
		`UPDATE runs SET finished_at = ?, success = ? WHERE id = ?`,
		time.Now().UTC(), success, j.runID,
	)
	if err != nil {
		return fmt.Errorf("record run end: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}
