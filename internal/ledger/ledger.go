// Package ledger persists sync state in the working directory: the CSV log
// of recorded orders, the dedup index derived from it, and the watermark
// date file.
package ledger

import (
	"github.com/TobiSchelling/EOSync/internal/record"
)

// Ledger pairs the CSV log with the watermark it advances.
type Ledger struct {
	Log       *Log
	Watermark *Watermark
}

// New creates a ledger.
func New(log *Log, wm *Watermark) *Ledger {
	return &Ledger{Log: log, Watermark: wm}
}

// CommitResult describes one committed batch.
type CommitResult struct {
	Written   int
	Watermark string
	// DateMissing is set when no row carried a usable publication date, in
	// which case the watermark was left untouched.
	DateMissing bool
}

// Commit appends rows to the log and advances the watermark to the latest
// publication date among them. An empty batch touches nothing.
func (l *Ledger) Commit(rows []record.Row) (*CommitResult, error) {
	res := &CommitResult{}
	if len(rows) == 0 {
		wm, err := l.Watermark.Load()
		if err != nil {
			return nil, err
		}
		res.Watermark = wm
		return res, nil
	}

	n, err := l.Log.Append(rows)
	if err != nil {
		return nil, err
	}
	res.Written = n

	idx := l.Log.profile.Index(record.PublicationDate)
	dates := make([]string, 0, len(rows))
	for _, row := range rows {
		if idx >= 0 && idx < len(row) && row[idx] != "" {
			dates = append(dates, row[idx])
		}
	}

	latest, ok := MaxDate(dates)
	if !ok {
		res.DateMissing = true
		res.Watermark, err = l.Watermark.Load()
		if err != nil {
			return nil, err
		}
		return res, nil
	}

	res.Watermark, err = l.Watermark.Advance(latest)
	if err != nil {
		return nil, err
	}
	return res, nil
}
