package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/TobiSchelling/EOSync/internal/record"
)

// Log is the append-only CSV log of recorded orders.
type Log struct {
	path    string
	profile record.Profile
}

// NewLog returns a log at path using the profile's column order.
func NewLog(path string, profile record.Profile) *Log {
	return &Log{path: path, profile: profile}
}

// Path returns the CSV file path.
func (l *Log) Path() string {
	return l.path
}

// Append writes rows to the end of the log, writing the header first when
// the file is new. It returns the number of rows written.
func (l *Log) Append(rows []record.Row) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	header, err := l.header()
	if err != nil {
		return 0, err
	}
	if header != nil && !slices.Equal(header, l.profile.Header()) {
		return 0, fmt.Errorf("%s has columns %v, profile %q expects %v",
			l.path, header, l.profile.Name, l.profile.Header())
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("opening csv log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.UseCRLF = true
	if header == nil {
		if err := w.Write(l.profile.Header()); err != nil {
			return 0, fmt.Errorf("writing csv header: %w", err)
		}
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return 0, fmt.Errorf("writing csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("flushing csv log: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("closing csv log: %w", err)
	}
	return len(rows), nil
}

// header returns the first line of an existing, non-empty log, or nil.
func (l *Log) header() ([]string, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening csv log: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	return header, nil
}

// Entries reads every row of the log as a column-name → value map.
// A missing log yields no entries.
func (l *Log) Entries() ([]map[string]string, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening csv log: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}

	var entries []map[string]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv log: %w", err)
		}
		entry := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(rec) {
				entry[name] = rec[i]
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// DocumentNumbers returns the set of document numbers already recorded.
func (l *Log) DocumentNumbers() (map[string]struct{}, error) {
	entries, err := l.Entries()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if num := e[record.DocumentNumber]; num != "" {
			seen[num] = struct{}{}
		}
	}
	return seen, nil
}
