// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package journal

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournal_RecordsRunAndSteps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "installer.db")

	j, err := Open(path)
	require.NoError(t, err)
	require.NotEmpty(t, j.RunID())

	require.NoError(t, j.RecordStep(1, "InstallPrerequisites", 0, "git already present"))
	require.NoError(t, j.RecordStep(2, "CloneSource", 128, "clone failed"))
	require.NoError(t, j.Finish(false))
	require.NoError(t, j.Close())

	// Inspect the database directly; the journal itself never reads back.
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var steps int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM steps WHERE run_id = ?`, j.RunID()).Scan(&steps))
	assert.Equal(t, 2, steps)

	var success bool
	var finished sql.NullTime
	require.NoError(t, db.QueryRow(
		`SELECT success, finished_at FROM runs WHERE id = ?`, j.RunID()).Scan(&success, &finished))
	assert.False(t, success)
	assert.True(t, finished.Valid)
}

func TestJournal_EachOpenStartsANewRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "installer.db")

	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())

	assert.NotEqual(t, first.RunID(), second.RunID())
}

func TestJournal_DuplicateStepSequenceFails(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "installer.db"))
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.RecordStep(1, "InstallPrerequisites", 0, "ok"))
	require.Error(t, j.RecordStep(1, "CloneSource", 0, "ok"))
}
