package commune

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/acceslibre/erpsync/internal/model"
)

// ReportKind classifies a contour job entry.
type ReportKind string

// Report kinds.
const (
	ReportErrors           ReportKind = "errors"
	ReportObsolete         ReportKind = "obsolete"
	ReportObsoleteNonEmpty ReportKind = "obsolete-nonempty"
	ReportUpdated          ReportKind = "updated"
)

// Report collects contour job entries by kind. Safe for concurrent use.
type Report struct {
	mu      sync.Mutex
	entries map[ReportKind][]string
}

func (r *Report) add(kind ReportKind, m model.Municipality, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries == nil {
		r.entries = make(map[ReportKind][]string)
	}
	r.entries[kind] = append(r.entries[kind], fmt.Sprintf("%s (%s): %s", m.Nom, m.Code, msg))
}

// Entries returns the entries recorded for kind.
func (r *Report) Entries(kind ReportKind) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.entries[kind]...)
}

// Print writes the anomaly sections of the report.
func (r *Report) Print(w io.Writer) {
	sections := []struct {
		title string
		kind  ReportKind
	}{
		{"Non-existent", ReportObsolete},
		{"Non-existent with ERPs attached", ReportObsoleteNonEmpty},
		{"Errors", ReportErrors},
	}
	for _, s := range sections {
		entries := r.Entries(s.kind)
		fmt.Fprintf(w, "\n%s (%d entries):\n\n", s.title, len(entries))
		if len(entries) == 0 {
			fmt.Fprintln(w, "No entries")
			continue
		}
		for _, e := range entries {
			fmt.Fprintf(w, "- %s\n", e)
		}
	}
	fmt.Fprintln(w, "\nDone.")
}

// ContourStore is the persistence needed by the contour job.
type ContourStore interface {
	WithoutContour(ctx context.Context) ([]model.Municipality, error)
	SetContour(ctx context.Context, code string, contour []byte) error
	MarkObsolete(ctx context.Context, code string) error
	CountEstablishments(ctx context.Context, communeID int64) (int, error)
}

// ContourSource fetches a commune contour as EWKB.
type ContourSource interface {
	Contour(ctx context.Context, code string) ([]byte, error)
}

// ContourJob fills missing commune contours from the geo API.
type ContourJob struct {
	Store       ContourStore
	Source      ContourSource
	Concurrency int
	// Rate caps requests per second. Zero disables limiting.
	Rate float64
}

// Run processes every commune without contour. Arrondissements are skipped:
// the API returns the contour of the surrounding commune for them.
func (j *ContourJob) Run(ctx context.Context) (*Report, error) {
	log := zap.L().With(zap.String("component", "contours"))
	report := &Report{}

	communes, err := j.Store.WithoutContour(ctx)
	if err != nil {
		return report, err
	}

	concurrency := j.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	var limiter *rate.Limiter
	if j.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(j.Rate), 1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, m := range communes {
		if _, ok := LookupArrondissement(m.Code); ok {
			continue
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
			}
			return j.process(gctx, m, report)
		})
	}
	if err := g.Wait(); err != nil {
		return report, eris.Wrap(err, "commune: contours")
	}

	log.Info("contours done",
		zap.Int("updated", len(report.Entries(ReportUpdated))),
		zap.Int("obsolete", len(report.Entries(ReportObsolete))),
		zap.Int("errors", len(report.Entries(ReportErrors))),
	)
	return report, ctx.Err()
}

func (j *ContourJob) process(ctx context.Context, m model.Municipality, report *Report) error {
	contour, err := j.Source.Contour(ctx, m.Code)
	switch {
	case errors.Is(err, ErrNotFound):
		count, err := j.Store.CountEstablishments(ctx, m.ID)
		if err != nil {
			return err
		}
		if count > 0 {
			report.add(ReportObsoleteNonEmpty, m, fmt.Sprintf("is obsolete with %d erps", count))
			return nil
		}
		if err := j.Store.MarkObsolete(ctx, m.Code); err != nil {
			return err
		}
		report.add(ReportObsolete, m, "marked as obsolete")
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case err != nil:
		report.add(ReportErrors, m, "Undecodable/bogus request: "+err.Error())
		return nil
	}

	if err := j.Store.SetContour(ctx, m.Code, contour); err != nil {
		report.add(ReportErrors, m, "Failed saving contour: "+err.Error())
		return nil
	}
	report.add(ReportUpdated, m, "Updated contour OK")
	return nil
}
