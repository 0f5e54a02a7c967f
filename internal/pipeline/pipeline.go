package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/TobiSchelling/EOSync/internal/archive"
	"github.com/TobiSchelling/EOSync/internal/collect"
	"github.com/TobiSchelling/EOSync/internal/config"
	"github.com/TobiSchelling/EOSync/internal/database"
	"github.com/TobiSchelling/EOSync/internal/ledger"
	"github.com/TobiSchelling/EOSync/internal/record"
)

// Summary holds the results of one sync run.
type Summary struct {
	RunID       string
	StartedAt   time.Time
	FinishedAt  time.Time
	DryRun      bool
	StartDate   string
	Fetched     int
	NewRecords  int
	Duplicates  int
	Written     int
	Watermark   string
	DateMissing bool
	FetchErr    error
	Outcomes    []archive.Outcome
}

// Count returns the number of outcomes with the given status.
func (s *Summary) Count(status archive.Status) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Degraded reports whether anything went wrong that the run absorbed:
// a failed search request, records that could not be archived, or a batch
// without a usable publication date.
func (s *Summary) Degraded() bool {
	return s.FetchErr != nil || s.DateMissing ||
		s.Count(archive.Failed) > 0 || s.Count(archive.Skipped) > 0
}

// Pipeline runs one sync: watermark, fetch, dedup, record, archive.
type Pipeline struct {
	profile  record.Profile
	dedup    bool
	client   *collect.Client
	ledger   *ledger.Ledger
	archiver *archive.Archiver
	history  *database.DB
	log      logrus.FieldLogger
	now      func() time.Time
}

// New creates a pipeline from configuration. history may be nil, in which
// case runs are not recorded.
func New(cfg *config.Config, doer collect.Doer, history *database.DB, log logrus.FieldLogger) (*Pipeline, error) {
	profile, err := record.ProfileByName(cfg.Sync.Profile)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		profile: profile,
		dedup:   cfg.Sync.Dedup,
		client:  collect.NewClient(doer, cfg.Registry, cfg.HTTP.UserAgent, profile.Fields, log),
		ledger: ledger.New(
			ledger.NewLog(cfg.CSVPath(), profile),
			ledger.NewWatermark(cfg.WatermarkPath(), cfg.Sync.DefaultStartDate),
		),
		archiver: archive.NewArchiver(doer, cfg.Registry.FullTextURL, cfg.TextDir(), cfg.HTTP.UserAgent, log),
		history:  history,
		log:      log,
		now:      time.Now,
	}, nil
}

// Run executes one sync. Per-record problems are reported in the Summary;
// an error is returned only when local state (the CSV log or the watermark)
// cannot be read or written.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	s, orders, err := p.collect(ctx)
	if err != nil {
		return nil, err
	}

	if len(orders) == 0 {
		p.log.Info("No new executive orders to process.")
		p.finish(s)
		return s, nil
	}

	res, err := p.ledger.Commit(p.profile.ProjectAll(orders))
	if err != nil {
		return nil, fmt.Errorf("recording orders: %w", err)
	}
	s.Written = res.Written
	s.Watermark = res.Watermark
	s.DateMissing = res.DateMissing
	if res.DateMissing {
		p.log.Warnf("Recorded %d new executive order(s), but none had a usable publication_date; watermark left at %s.", res.Written, res.Watermark)
	} else {
		p.log.Infof("Recorded %d new executive order(s). Last publication date updated to %s.", res.Written, res.Watermark)
	}

	for _, o := range orders {
		s.Outcomes = append(s.Outcomes, p.archiver.Archive(ctx, o))
	}

	p.finish(s)
	return s, nil
}

// DryRun fetches and filters like Run but writes nothing.
func (p *Pipeline) DryRun(ctx context.Context) (*Summary, error) {
	s, orders, err := p.collect(ctx)
	if err != nil {
		return nil, err
	}
	s.DryRun = true
	for _, o := range orders {
		p.log.Infof("[dry-run] would record %s (%s): %s",
			o.String(record.DocumentNumber), o.String(record.PublicationDate), o.String(record.Title))
	}
	s.FinishedAt = p.now()
	return s, nil
}

// collect loads the watermark, fetches the batch and drops orders already
// in the log.
func (p *Pipeline) collect(ctx context.Context) (*Summary, []record.Record, error) {
	s := &Summary{RunID: uuid.NewString(), StartedAt: p.now()}

	start, err := p.ledger.Watermark.Load()
	if err != nil {
		return nil, nil, err
	}
	s.StartDate = start
	s.Watermark = start
	p.log.Infof("Fetching executive orders published on or after: %s", start)

	orders, fetchErr := p.client.FetchOrders(ctx, start)
	s.FetchErr = fetchErr
	s.Fetched = len(orders)

	if p.dedup {
		seen, err := p.ledger.Log.DocumentNumbers()
		if err != nil {
			return nil, nil, fmt.Errorf("loading recorded document numbers: %w", err)
		}
		orders = filterSeen(orders, seen)
	}
	s.NewRecords = len(orders)
	s.Duplicates = s.Fetched - s.NewRecords
	return s, orders, nil
}

func filterSeen(orders []record.Record, seen map[string]struct{}) []record.Record {
	var fresh []record.Record
	for _, o := range orders {
		if _, ok := seen[o.String(record.DocumentNumber)]; ok {
			continue
		}
		fresh = append(fresh, o)
	}
	return fresh
}

func (p *Pipeline) finish(s *Summary) {
	s.FinishedAt = p.now()
	if p.history == nil {
		return
	}
	if err := p.history.InsertRun(historyRun(s), historyOutcomes(s)); err != nil {
		p.log.Errorf("Failed to record run history: %v", err)
	}
}

func historyRun(s *Summary) database.Run {
	run := database.Run{
		ID:          s.RunID,
		StartedAt:   s.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt:  s.FinishedAt.UTC().Format(time.RFC3339),
		StartDate:   s.StartDate,
		Watermark:   s.Watermark,
		Fetched:     s.Fetched,
		NewRecords:  s.NewRecords,
		RowsWritten: s.Written,
		Archived:    s.Count(archive.Archived),
		Skipped:     s.Count(archive.Skipped),
		Failed:      s.Count(archive.Failed),
		DateMissing: s.DateMissing,
	}
	if s.FetchErr != nil {
		msg := s.FetchErr.Error()
		run.FetchError = &msg
	}
	return run
}

func historyOutcomes(s *Summary) []database.RecordOutcome {
	outcomes := make([]database.RecordOutcome, len(s.Outcomes))
	for i, o := range s.Outcomes {
		outcomes[i] = database.RecordOutcome{
			RunID:          s.RunID,
			DocumentNumber: o.DocumentNumber,
			Status:         string(o.Status),
			Reason:         optional(o.Reason),
			Path:           optional(o.Path),
		}
	}
	return outcomes
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
