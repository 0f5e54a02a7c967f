package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/TobiSchelling/EOSync/internal/flatten"
	"github.com/TobiSchelling/EOSync/internal/record"
)

// Status is the result class of one archive attempt.
type Status string

const (
	Archived Status = "archived"
	Skipped  Status = "skipped"
	Failed   Status = "failed"
)

// Outcome records what happened to one order.
type Outcome struct {
	DocumentNumber string
	Status         Status
	Reason         string
	Path           string
}

// Doer abstracts https://pkg.go.dev/net/http#Client.Do.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Archiver fetches full-text XML for orders and stores a plain-text copy
// per document number.
type Archiver struct {
	doer        Doer
	urlTemplate string
	dir         string
	userAgent   string
	log         logrus.FieldLogger
}

// NewArchiver creates an archiver writing into dir. urlTemplate may use
// {year}, {month}, {day} and {document_number}.
func NewArchiver(doer Doer, urlTemplate, dir, userAgent string, log logrus.FieldLogger) *Archiver {
	return &Archiver{doer: doer, urlTemplate: urlTemplate, dir: dir, userAgent: userAgent, log: log}
}

// Dir returns the output directory.
func (a *Archiver) Dir() string {
	return a.dir
}

// FullTextURL derives the XML URL from a YYYY-MM-DD publication date.
// ok is false when the date does not have exactly three parts.
func FullTextURL(tmpl, publicationDate, documentNumber string) (string, bool) {
	parts := strings.Split(publicationDate, "-")
	if len(parts) != 3 {
		return "", false
	}
	r := strings.NewReplacer(
		"{year}", parts[0],
		"{month}", parts[1],
		"{day}", parts[2],
		"{document_number}", documentNumber,
	)
	return r.Replace(tmpl), true
}

// TextPath returns the archive file path for a document number.
func (a *Archiver) TextPath(documentNumber string) string {
	return TextPath(a.dir, documentNumber)
}

// TextPath returns the archive file path for a document number under dir.
func TextPath(dir, documentNumber string) string {
	return filepath.Join(dir, documentNumber+".txt")
}

// ValidDocumentNumber reports whether a document number can be used as a
// file name inside the archive directory.
func ValidDocumentNumber(documentNumber string) bool {
	switch documentNumber {
	case "", ".", "..":
		return false
	}
	return !strings.ContainsAny(documentNumber, `/\`)
}

// Archive fetches and stores the plain text of one order. It never returns
// an error: every failure is reported in the Outcome and logged.
func (a *Archiver) Archive(ctx context.Context, rec record.Record) Outcome {
	pubDate := rec.String(record.PublicationDate)
	docNum := rec.String(record.DocumentNumber)
	out := Outcome{DocumentNumber: docNum}
	log := a.log.WithField("document_number", docNum)

	if pubDate == "" || docNum == "" {
		log.Warn("Missing publication_date or document_number, skipping")
		return skip(out, "missing publication_date or document_number")
	}
	if !ValidDocumentNumber(docNum) {
		log.Warn("Document number is not a valid file name, skipping")
		return skip(out, "invalid document_number")
	}

	xmlURL, ok := FullTextURL(a.urlTemplate, pubDate, docNum)
	if !ok {
		log.Warnf("Could not generate XML URL from publication_date %q", pubDate)
		return skip(out, fmt.Sprintf("malformed publication_date %q", pubDate))
	}

	body, err := a.fetch(ctx, xmlURL)
	if err != nil {
		log.Errorf("Error fetching XML from %s: %v", xmlURL, err)
		out.Status = Failed
		out.Reason = err.Error()
		return out
	}

	text, err := flatten.Text(bytes.NewReader(body))
	if err != nil {
		log.Errorf("XML parse error: %v", err)
		out.Reason = err.Error()
	}

	path := a.TextPath(docNum)
	if err := a.write(path, text); err != nil {
		log.Errorf("Error saving plain text: %v", err)
		out.Status = Failed
		out.Reason = err.Error()
		return out
	}

	log.Infof("Saved plain text to %s", path)
	out.Status = Archived
	out.Path = path
	return out
}

func skip(out Outcome, reason string) Outcome {
	out.Status = Skipped
	out.Reason = reason
	return out
}

func (a *Archiver) fetch(ctx context.Context, xmlURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, xmlURL, nil)
	if err != nil {
		return nil, err
	}
	if a.userAgent != "" {
		req.Header.Set("User-Agent", a.userAgent)
	}

	resp, err := a.doer.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &httpError{code: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}

func (a *Archiver) write(path, text string) error {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("creating text directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP %d", e.code)
}
