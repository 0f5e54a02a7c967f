package ledger

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// DateLayout is the publication date format used by the registry.
const DateLayout = "2006-01-02"

// Watermark persists the last processed publication date in a one-line file.
type Watermark struct {
	path     string
	fallback string
}

// NewWatermark returns a store at path that reports fallback until the
// first write.
func NewWatermark(path, fallback string) *Watermark {
	return &Watermark{path: path, fallback: fallback}
}

// Path returns the watermark file path.
func (w *Watermark) Path() string {
	return w.path
}

// Load returns the stored date, or the fallback when the file is missing
// or blank.
func (w *Watermark) Load() (string, error) {
	data, err := os.ReadFile(w.path)
	if errors.Is(err, os.ErrNotExist) {
		return w.fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("reading watermark: %w", err)
	}
	date := strings.TrimSpace(string(data))
	if date == "" {
		return w.fallback, nil
	}
	return date, nil
}

// Store overwrites the watermark file.
func (w *Watermark) Store(date string) error {
	if err := os.WriteFile(w.path, []byte(date), 0o644); err != nil {
		return fmt.Errorf("writing watermark: %w", err)
	}
	return nil
}

// Advance stores the later of the current watermark and date, keeping the
// watermark non-decreasing. It returns the stored value.
func (w *Watermark) Advance(date string) (string, error) {
	current, err := w.Load()
	if err != nil {
		return "", err
	}
	if later(current, date) {
		return current, nil
	}
	if err := w.Store(date); err != nil {
		return "", err
	}
	return date, nil
}

// later reports whether a is a valid date strictly after b.
func later(a, b string) bool {
	ta, err := time.Parse(DateLayout, a)
	if err != nil {
		return false
	}
	tb, err := time.Parse(DateLayout, b)
	if err != nil {
		return false
	}
	return ta.After(tb)
}

// MaxDate returns the latest parseable date among dates. ok is false when
// none parse.
func MaxDate(dates []string) (latest string, ok bool) {
	var best time.Time
	for _, d := range dates {
		t, err := time.Parse(DateLayout, d)
		if err != nil {
			continue
		}
		if !ok || t.After(best) {
			best, ok = t, true
		}
	}
	if !ok {
		return "", false
	}
	return best.Format(DateLayout), true
}
