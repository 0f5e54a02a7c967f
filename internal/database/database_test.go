package database

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

func testRun(id, startedAt string) Run {
	return Run{
		ID:          id,
		StartedAt:   startedAt,
		FinishedAt:  startedAt,
		StartDate:   "2025-01-20",
		Watermark:   "2025-03-01",
		Fetched:     3,
		NewRecords:  2,
		RowsWritten: 2,
		Archived:    1,
		Failed:      1,
	}
}

func TestInsertAndGetRun(t *testing.T) {
	db := openTestDB(t)
	run := testRun("run-1", "2025-03-02T08:00:00Z")
	run.FetchError = ptr("HTTP 503")
	run.DateMissing = true

	err := db.InsertRun(run, []RecordOutcome{
		{DocumentNumber: "2025-04567", Status: "archived", Path: ptr("executive_order_txt/2025-04567.txt")},
		{DocumentNumber: "2025-03456", Status: "failed", Reason: ptr("HTTP 404")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := db.GetRun("run-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected run")
	}
	if got.Watermark != "2025-03-01" || got.Archived != 1 || got.Failed != 1 {
		t.Errorf("unexpected run %+v", got)
	}
	if got.FetchError == nil || *got.FetchError != "HTTP 503" {
		t.Error("expected fetch error to round-trip")
	}
	if !got.DateMissing {
		t.Error("expected DateMissing")
	}

	outcomes, err := db.GetOutcomesForRun("run-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].DocumentNumber != "2025-04567" || outcomes[0].Path == nil {
		t.Errorf("unexpected first outcome %+v", outcomes[0])
	}
	if outcomes[1].Reason == nil || *outcomes[1].Reason != "HTTP 404" {
		t.Errorf("unexpected second outcome %+v", outcomes[1])
	}
}

func TestGetRunMissing(t *testing.T) {
	db := openTestDB(t)
	got, err := db.GetRun("nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestInsertRunRejectsUnknownStatus(t *testing.T) {
	db := openTestDB(t)
	err := db.InsertRun(testRun("run-1", "2025-03-02T08:00:00Z"), []RecordOutcome{
		{DocumentNumber: "2025-1", Status: "pending"},
	})
	if err == nil {
		t.Fatal("expected constraint error")
	}
	if got, _ := db.GetRun("run-1"); got != nil {
		t.Error("expected run insert to be rolled back")
	}
}

func TestGetRecentRuns(t *testing.T) {
	db := openTestDB(t)
	db.InsertRun(testRun("a", "2025-03-01T08:00:00Z"), nil)
	db.InsertRun(testRun("b", "2025-03-03T08:00:00Z"), nil)
	db.InsertRun(testRun("c", "2025-03-02T08:00:00Z"), nil)

	runs, err := db.GetRecentRuns(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "b" || runs[1].ID != "c" {
		t.Errorf("expected newest first, got %s, %s", runs[0].ID, runs[1].ID)
	}
}

func TestGetOutcomesForDocument(t *testing.T) {
	db := openTestDB(t)
	db.InsertRun(testRun("a", "2025-03-01T08:00:00Z"), []RecordOutcome{
		{DocumentNumber: "2025-1", Status: "failed", Reason: ptr("HTTP 500")},
	})
	db.InsertRun(testRun("b", "2025-03-02T08:00:00Z"), []RecordOutcome{
		{DocumentNumber: "2025-1", Status: "archived"},
		{DocumentNumber: "2025-2", Status: "archived"},
	})

	outcomes, err := db.GetOutcomesForDocument("2025-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].RunID != "b" || outcomes[0].Status != "archived" {
		t.Errorf("expected latest outcome first, got %+v", outcomes[0])
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Runs != 0 || stats.LastRunAt != nil {
		t.Errorf("expected empty stats, got %+v", stats)
	}

	db.InsertRun(testRun("a", "2025-03-01T08:00:00Z"), nil)
	db.InsertRun(testRun("b", "2025-03-02T08:00:00Z"), nil)

	stats, err = db.GetStats()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Runs != 2 || stats.Archived != 2 || stats.Failed != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.LastRunAt == nil || *stats.LastRunAt != "2025-03-02T08:00:00Z" {
		t.Errorf("unexpected last run %v", stats.LastRunAt)
	}
}
