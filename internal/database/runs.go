package database

import (
	"database/sql"
	"fmt"
)

// InsertRun stores a run and its per-record outcomes in one transaction.
func (db *DB) InsertRun(run Run, outcomes []RecordOutcome) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin run insert: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, started_at, finished_at, start_date, watermark, fetched,
		new_records, rows_written, archived, skipped, failed, fetch_error, date_missing)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt, run.FinishedAt, run.StartDate, run.Watermark, run.Fetched,
		run.NewRecords, run.RowsWritten, run.Archived, run.Skipped, run.Failed,
		run.FetchError, boolToInt(run.DateMissing),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	for _, o := range outcomes {
		_, err := tx.Exec(
			`INSERT INTO record_outcomes (run_id, document_number, status, reason, path)
			VALUES (?, ?, ?, ?, ?)`,
			run.ID, o.DocumentNumber, o.Status, o.Reason, o.Path,
		)
		if err != nil {
			return fmt.Errorf("inserting outcome for %s: %w", o.DocumentNumber, err)
		}
	}

	return tx.Commit()
}

const runColumns = `id, started_at, finished_at, start_date, watermark, fetched, new_records,
	rows_written, archived, skipped, failed, fetch_error, date_missing`

// GetRecentRuns returns up to limit runs, newest first.
func (db *DB) GetRecentRuns(limit int) ([]Run, error) {
	rows, err := db.conn.Query(
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// GetRun returns a single run by ID, or nil when it does not exist.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.conn.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetOutcomesForRun returns the outcomes recorded for a run.
func (db *DB) GetOutcomesForRun(runID string) ([]RecordOutcome, error) {
	return db.queryOutcomes(
		`SELECT run_id, document_number, status, reason, path
		FROM record_outcomes WHERE run_id = ? ORDER BY rowid`, runID,
	)
}

// GetOutcomesForDocument returns every recorded outcome for a document,
// newest run first.
func (db *DB) GetOutcomesForDocument(documentNumber string) ([]RecordOutcome, error) {
	return db.queryOutcomes(
		`SELECT o.run_id, o.document_number, o.status, o.reason, o.path
		FROM record_outcomes o JOIN runs r ON r.id = o.run_id
		WHERE o.document_number = ? ORDER BY r.started_at DESC`, documentNumber,
	)
}

// GetStats returns aggregate counts over all runs.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}
	err := db.conn.QueryRow(
		`SELECT COUNT(*), MAX(finished_at), COALESCE(SUM(archived), 0),
		COALESCE(SUM(skipped), 0), COALESCE(SUM(failed), 0) FROM runs`,
	).Scan(&s.Runs, &s.LastRunAt, &s.Archived, &s.Skipped, &s.Failed)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (db *DB) queryOutcomes(query string, args ...any) ([]RecordOutcome, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []RecordOutcome
	for rows.Next() {
		var o RecordOutcome
		if err := rows.Scan(&o.RunID, &o.DocumentNumber, &o.Status, &o.Reason, &o.Path); err != nil {
			return nil, err
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	var dateMissing int
	if err := s.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.StartDate, &r.Watermark,
		&r.Fetched, &r.NewRecords, &r.RowsWritten, &r.Archived, &r.Skipped, &r.Failed,
		&r.FetchError, &dateMissing); err != nil {
		return nil, err
	}
	r.DateMissing = dateMissing != 0
	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
