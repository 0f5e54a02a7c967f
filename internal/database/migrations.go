package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "run history",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    start_date TEXT NOT NULL,
    watermark TEXT NOT NULL,
    fetched INTEGER DEFAULT 0,
    new_records INTEGER DEFAULT 0,
    rows_written INTEGER DEFAULT 0,
    archived INTEGER DEFAULT 0,
    skipped INTEGER DEFAULT 0,
    failed INTEGER DEFAULT 0,
    fetch_error TEXT,
    date_missing INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS record_outcomes (
    run_id TEXT NOT NULL REFERENCES runs(id),
    document_number TEXT NOT NULL,
    status TEXT NOT NULL CHECK(status IN ('archived', 'skipped', 'failed')),
    reason TEXT,
    path TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_outcomes_run ON record_outcomes(run_id);
CREATE INDEX IF NOT EXISTS idx_outcomes_document ON record_outcomes(document_number);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
