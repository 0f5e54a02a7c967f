package ledger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TobiSchelling/EOSync/internal/record"
)

func openTestLedger(t *testing.T, profile record.Profile) *Ledger {
	t.Helper()
	dir := t.TempDir()
	return New(
		NewLog(filepath.Join(dir, "executive_orders.csv"), profile),
		NewWatermark(filepath.Join(dir, "last_eo_date.txt"), "2025-01-20"),
	)
}

func row(num, date string) record.Row {
	return record.Row{num, "Title " + num, date, "https://example.com/" + num + ".pdf", "https://example.com/" + num}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

func TestWatermarkDefault(t *testing.T) {
	wm := NewWatermark(filepath.Join(t.TempDir(), "last_eo_date.txt"), "2025-01-20")
	got, err := wm.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "2025-01-20" {
		t.Errorf("expected default date, got %q", got)
	}
}

func TestWatermarkStoreAndLoad(t *testing.T) {
	wm := NewWatermark(filepath.Join(t.TempDir(), "last_eo_date.txt"), "2025-01-20")
	if err := wm.Store("2025-03-01"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.WriteFile(wm.Path(), []byte("2025-03-02\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, _ := wm.Load()
	if got != "2025-03-02" {
		t.Errorf("expected trimmed date, got %q", got)
	}

	if err := os.WriteFile(wm.Path(), []byte("  \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, _ = wm.Load()
	if got != "2025-01-20" {
		t.Errorf("expected default for blank file, got %q", got)
	}
}

func TestWatermarkAdvanceNeverDecreases(t *testing.T) {
	wm := NewWatermark(filepath.Join(t.TempDir(), "last_eo_date.txt"), "2025-01-20")
	got, err := wm.Advance("2025-03-01")
	if err != nil || got != "2025-03-01" {
		t.Fatalf("expected 2025-03-01, got %q (%v)", got, err)
	}
	got, _ = wm.Advance("2025-02-15")
	if got != "2025-03-01" {
		t.Errorf("expected watermark to stay at 2025-03-01, got %q", got)
	}
	if s := readFile(t, wm.Path()); s != "2025-03-01" {
		t.Errorf("expected file to hold 2025-03-01, got %q", s)
	}
}

func TestMaxDate(t *testing.T) {
	tests := []struct {
		dates []string
		want  string
		ok    bool
	}{
		{[]string{"2025-03-01", "2025-02-15"}, "2025-03-01", true},
		{[]string{"2025-02-15", "bogus", "2025-03-01"}, "2025-03-01", true},
		{[]string{"2025-031-01", ""}, "", false},
		{nil, "", false},
	}
	for _, tt := range tests {
		got, ok := MaxDate(tt.dates)
		if got != tt.want || ok != tt.ok {
			t.Errorf("MaxDate(%q) = %q, %v; want %q, %v", tt.dates, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCommitWritesHeaderOnce(t *testing.T) {
	l := openTestLedger(t, record.Minimal)

	if _, err := l.Commit([]record.Row{row("2025-01", "2025-02-15")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := l.Commit([]record.Row{row("2025-02", "2025-02-20")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimRight(readFile(t, l.Log.Path()), "\r\n"), "\r\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines: %q", len(lines), lines)
	}
	if lines[0] != "document_number,title,publication_date,pdf_url,html_url" {
		t.Errorf("unexpected header %q", lines[0])
	}
}

func TestCommitAdvancesToMaximumDate(t *testing.T) {
	l := openTestLedger(t, record.Minimal)

	res, err := l.Commit([]record.Row{
		row("2025-04567", "2025-03-01"),
		row("2025-03456", "2025-02-15"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Written != 2 {
		t.Errorf("expected 2 written, got %d", res.Written)
	}
	if res.Watermark != "2025-03-01" {
		t.Errorf("expected watermark 2025-03-01, got %q", res.Watermark)
	}
	if s := readFile(t, l.Watermark.Path()); s != "2025-03-01" {
		t.Errorf("expected watermark file 2025-03-01, got %q", s)
	}
}

func TestCommitEmptyBatchTouchesNothing(t *testing.T) {
	l := openTestLedger(t, record.Minimal)

	res, err := l.Commit(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Written != 0 || res.Watermark != "2025-01-20" {
		t.Errorf("unexpected result %+v", res)
	}
	if _, err := os.Stat(l.Log.Path()); !os.IsNotExist(err) {
		t.Error("expected no csv log to be created")
	}
	if _, err := os.Stat(l.Watermark.Path()); !os.IsNotExist(err) {
		t.Error("expected no watermark file to be created")
	}
}

func TestCommitWithoutDatesKeepsWatermark(t *testing.T) {
	l := openTestLedger(t, record.Minimal)
	if err := l.Watermark.Store("2025-02-01"); err != nil {
		t.Fatal(err)
	}

	res, err := l.Commit([]record.Row{row("2025-1", ""), row("2025-2", "not-a-date")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.DateMissing {
		t.Error("expected DateMissing")
	}
	if res.Written != 2 {
		t.Errorf("expected rows still written, got %d", res.Written)
	}
	if res.Watermark != "2025-02-01" {
		t.Errorf("expected unchanged watermark, got %q", res.Watermark)
	}
}

func TestAppendRejectsForeignHeader(t *testing.T) {
	l := openTestLedger(t, record.Extended)
	if err := os.WriteFile(l.Log.Path(), []byte("document_number,title\r\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Log.Append([]record.Row{record.Extended.Project(record.Record{})}); err == nil {
		t.Error("expected header mismatch error")
	}
}

func TestDocumentNumbers(t *testing.T) {
	l := openTestLedger(t, record.Minimal)

	seen, err := l.Log.DocumentNumbers()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != 0 {
		t.Errorf("expected empty set for missing log, got %v", seen)
	}

	l.Log.Append([]record.Row{row("2025-01", "2025-02-15"), row("", "2025-02-16"), row("2025-02", "2025-02-17")})
	seen, err = l.Log.DocumentNumbers()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != 2 {
		t.Errorf("expected 2 document numbers, got %v", seen)
	}
	if _, ok := seen["2025-02"]; !ok {
		t.Error("expected 2025-02 in set")
	}
}

func TestEntriesQuotedFields(t *testing.T) {
	l := openTestLedger(t, record.Minimal)
	r := record.Row{"2025-01", "Title, with comma and \"quotes\"", "2025-02-15", "", ""}
	if _, err := l.Log.Append([]record.Row{r}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := l.Log.Entries()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0]["title"] != r[1] {
		t.Errorf("unexpected entries %v", entries)
	}
}
