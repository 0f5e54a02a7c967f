package database

// Run is one recorded sync invocation.
type Run struct {
	ID          string
	StartedAt   string
	FinishedAt  string
	StartDate   string
	Watermark   string
	Fetched     int
	NewRecords  int
	RowsWritten int
	Archived    int
	Skipped     int
	Failed      int
	FetchError  *string
	DateMissing bool
}

// RecordOutcome is the archive result for one order within a run.
type RecordOutcome struct {
	RunID          string
	DocumentNumber string
	Status         string // "archived", "skipped" or "failed"
	Reason         *string
	Path           *string
}

// Stats contains aggregate run history statistics.
type Stats struct {
	Runs      int
	LastRunAt *string
	Archived  int
	Skipped   int
	Failed    int
}
