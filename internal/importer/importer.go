// Package importer runs one dataset through a mapper, the validator and
// the establishment repository, one transaction per row.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/acceslibre/erpsync/internal/erp"
	"github.com/acceslibre/erpsync/internal/fetcher"
	"github.com/acceslibre/erpsync/internal/mapper"
	"github.com/acceslibre/erpsync/internal/metrics"
	"github.com/acceslibre/erpsync/internal/model"
	"github.com/acceslibre/erpsync/internal/store"
	"github.com/acceslibre/erpsync/internal/validate"
)

// errRollback discards the writes of a validate-only row.
var errRollback = errors.New("importer: validate only")

// Hook runs after a row's transaction committed, with the persisted
// establishment. Hook failures are logged and do not change the row outcome.
type Hook func(ctx context.Context, repo erp.Repository, e *model.Establishment) error

// CompletionRate recomputes the stored completion rate of e.
func CompletionRate(ctx context.Context, repo erp.Repository, e *model.Establishment) error {
	return repo.SetCompletionRate(ctx, e.ID, e.Accessibility.CompletionRate())
}

// Options configures one run.
type Options struct {
	Dataset  string
	Mapper   mapper.Mapper
	Defaults mapper.Defaults
	// ForceUpdate turns a duplicate into an update of the matched establishment.
	ForceUpdate bool
	// ValidateOnly maps and validates every row without writing anything.
	ValidateOnly bool
	// Progress receives one character per row when set.
	Progress io.Writer
}

// Importer processes dataset rows.
type Importer struct {
	repo      erp.Repository
	validator *validate.Validator
	hooks     []Hook
	metrics   *metrics.Metrics
	ledger    store.Store
	now       func() time.Time
}

// Option configures an Importer.
type Option func(*Importer)

// WithHooks replaces the post-commit hooks. The default is CompletionRate.
func WithHooks(hooks ...Hook) Option {
	return func(im *Importer) { im.hooks = hooks }
}

// WithMetrics counts row outcomes and run durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(im *Importer) { im.metrics = m }
}

// WithLedger records each run in the import run ledger.
func WithLedger(s store.Store) Option {
	return func(im *Importer) { im.ledger = s }
}

// New creates an Importer.
func New(repo erp.Repository, validator *validate.Validator, opts ...Option) *Importer {
	im := &Importer{
		repo:      repo,
		validator: validator,
		hooks:     []Hook{CompletionRate},
		now:       time.Now,
	}
	for _, o := range opts {
		o(im)
	}
	return im
}

// Run imports every row of src. Per-row failures are collected in the
// report; the returned error is set only when the source itself fails or ctx
// is cancelled, in which case the partial report is still returned.
func (im *Importer) Run(ctx context.Context, src fetcher.Source, opts Options) (*Report, error) {
	if opts.Mapper == nil {
		return nil, eris.New("importer: no mapper")
	}
	log := zap.L().With(zap.String("component", "importer"), zap.String("dataset", opts.Dataset))

	report := &Report{Dataset: opts.Dataset, StartedAt: im.now()}

	var runID string
	if im.ledger != nil && !opts.ValidateOnly {
		run, err := im.ledger.StartRun(ctx, opts.Dataset)
		if err != nil {
			return nil, eris.Wrapf(err, "importer: start run for %s", opts.Dataset)
		}
		runID = run.ID
	}

	log.Info("starting import",
		zap.Bool("force_update", opts.ForceUpdate),
		zap.Bool("enrich_only", opts.Defaults.EnrichOnly),
		zap.Bool("validate_only", opts.ValidateOnly),
	)

	rows, errc := src.Rows(ctx)
	for row := range rows {
		if ctx.Err() != nil {
			break
		}
		im.processRow(ctx, log, row, opts, report)
	}
	if opts.Progress != nil {
		fmt.Fprintln(opts.Progress) //nolint:errcheck
	}

	runErr := <-errc
	if runErr == nil && ctx.Err() != nil {
		runErr = eris.Wrap(ctx.Err(), "importer: run cancelled")
	}
	report.FinishedAt = im.now()
	im.finish(ctx, log, runID, report, runErr)
	return report, runErr
}

func (im *Importer) finish(ctx context.Context, log *zap.Logger, runID string, report *Report, runErr error) {
	elapsed := report.FinishedAt.Sub(report.StartedAt)
	im.metrics.ObserveRun(report.Dataset, elapsed, runErr == nil)

	if runErr != nil {
		log.Error("import failed", zap.Error(runErr), zap.Duration("elapsed", elapsed))
	} else {
		log.Info("import complete",
			zap.Int("imported", report.Counts.Imported),
			zap.Int("skipped", report.Counts.Skipped),
			zap.Int("unpublished", report.Counts.Unpublished),
			zap.Int("errors", report.Counts.Errors),
			zap.Int("duplicated", report.Counts.Duplicated),
			zap.Duration("elapsed", elapsed),
		)
	}

	if runID == "" {
		return
	}
	// The run context may be cancelled already; the ledger write must land.
	lctx := context.WithoutCancel(ctx)
	var err error
	if runErr != nil {
		err = im.ledger.FailRun(lctx, runID, report.Counts, runErr.Error())
	} else {
		err = im.ledger.CompleteRun(lctx, runID, report.Counts)
	}
	if err != nil {
		log.Error("failed to record run", zap.String("run_id", runID), zap.Error(err))
	}
}

// rowResult carries what a row's transaction produced.
type rowResult struct {
	outcome mapper.Outcome
	saved   *model.Establishment
	created bool
	forced  bool
}

func (im *Importer) processRow(ctx context.Context, log *zap.Logger, row fetcher.RawRow, opts Options, report *Report) {
	var res rowResult
	err := im.repo.WithTx(ctx, func(tx erp.Repository) error {
		res = rowResult{}
		out, err := opts.Mapper.Process(ctx, tx, row, opts.Defaults)
		if err != nil {
			return err
		}
		res.outcome = out
		if c, ok := out.(mapper.Candidate); ok {
			if err := im.persist(ctx, tx, c, opts, &res); err != nil {
				return err
			}
		}
		if opts.ValidateOnly {
			return errRollback
		}
		return nil
	})
	if errors.Is(err, errRollback) {
		err = nil
	}
	if err != nil && ctx.Err() != nil {
		// Cancelled mid-row: the row is neither imported nor failed.
		return
	}

	rowLog := log.With(zap.Int("line", row.Line))
	if err != nil {
		im.fail(rowLog, row, res, err, opts, report)
		return
	}

	switch out := res.outcome.(type) {
	case mapper.Candidate:
		if res.forced {
			report.Counts.Duplicated++
			im.metrics.IncRecord(opts.Dataset, metrics.OutcomeDuplicate)
		}
		if opts.ValidateOnly {
			report.Validated++
			report.progress(opts.Progress, '.')
			return
		}
		report.Counts.Imported++
		report.Imported = append(report.Imported, describe(res.saved))
		report.progress(opts.Progress, '.')
		if res.created {
			im.metrics.IncRecord(opts.Dataset, metrics.OutcomeImported)
		} else {
			im.metrics.IncRecord(opts.Dataset, metrics.OutcomeUpdated)
		}
		for _, h := range im.hooks {
			if err := h(ctx, im.repo, res.saved); err != nil {
				rowLog.Warn("post-commit hook failed", zap.Int64("erp_id", res.saved.ID), zap.Error(err))
			}
		}
	case mapper.Skipped:
		report.Counts.Skipped++
		report.Skipped = append(report.Skipped, fmt.Sprintf("ligne %d: %s", row.Line, out.Reason))
		im.metrics.IncRecord(opts.Dataset, metrics.OutcomeSkipped)
		if out.NoRecord {
			report.progress(opts.Progress, 'X')
		} else {
			report.progress(opts.Progress, 'S')
		}
		rowLog.Debug("row skipped", zap.String("reason", out.Reason))
	case mapper.Unpublished:
		report.Counts.Unpublished++
		report.Unpublished = append(report.Unpublished, fmt.Sprintf("%s: %s", describe(&out.Establishment), out.Reason))
		im.metrics.IncRecord(opts.Dataset, metrics.OutcomeUnpublished)
		report.progress(opts.Progress, 'U')
		rowLog.Debug("establishment unpublished", zap.Int64("erp_id", out.Establishment.ID))
	}
}

// persist validates c and writes it. A duplicate is retried as an update of
// the matched establishment when ForceUpdate is set.
func (im *Importer) persist(ctx context.Context, tx erp.Repository, c mapper.Candidate, opts Options, res *rowResult) error {
	in := validate.Input{Record: c.Record, Existing: c.Existing, EnrichOnly: opts.Defaults.EnrichOnly}
	rec, err := im.validator.Validate(ctx, tx, in)

	var dup *model.DuplicateError
	if err != nil && opts.ForceUpdate && errors.As(err, &dup) {
		existing, gerr := tx.Get(ctx, dup.ExistingID)
		if gerr != nil {
			return storageErr("get duplicate", gerr)
		}
		if existing != nil {
			res.forced = true
			in.Existing = existing
			rec, err = im.validator.Validate(ctx, tx, in)
		}
	}
	if err != nil {
		return err
	}
	if opts.ValidateOnly {
		return nil
	}

	var saved *model.Establishment
	if in.Existing != nil {
		upd := *in.Existing
		upd.Record = *rec
		if err := tx.Update(ctx, &upd); err != nil {
			return storageErr("update", err)
		}
		saved = &upd
	} else {
		saved, err = tx.Create(ctx, rec)
		if err != nil {
			return storageErr("create", err)
		}
		res.created = true
	}

	for _, l := range c.Sources {
		if err := tx.ReplaceSourceLink(ctx, saved.ID, l.Source, l.SourceID); err != nil {
			return storageErr("link source", err)
		}
	}
	if err := tx.EnsureAccessibility(ctx, saved.ID); err != nil {
		return storageErr("ensure accessibility", err)
	}
	res.saved = saved
	return nil
}

func (im *Importer) fail(log *zap.Logger, row fetcher.RawRow, res rowResult, err error, opts Options, report *Report) {
	kind := model.Kind(err)
	name := row.String("nom")
	if c, ok := res.outcome.(mapper.Candidate); ok && c.Record.Nom != "" {
		name = c.Record.Nom
	}

	report.Counts.Errors++
	if kind == model.KindDuplicate {
		report.Counts.Duplicated++
		im.metrics.IncRecord(opts.Dataset, metrics.OutcomeDuplicate)
	}
	im.metrics.IncRecord(opts.Dataset, metrics.OutcomeError)
	report.Failures = append(report.Failures, Failure{
		Line: row.Line,
		Name: name,
		Kind: kind,
		Err:  err,
		Data: row.Values,
	})
	report.progress(opts.Progress, 'E')

	fields := []zap.Field{zap.String("kind", string(kind)), zap.String("nom", name), zap.Error(err)}
	if kind == model.KindStorage || kind == model.KindOther {
		log.Error("row failed", fields...)
		return
	}
	log.Warn("row rejected", fields...)
}

func storageErr(op string, err error) error {
	var se *model.StorageError
	if errors.As(err, &se) {
		return err
	}
	return &model.StorageError{Op: op, Err: err}
}

func describe(e *model.Establishment) string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s, %s (pk=%d)", e.Nom, e.Commune, e.ID)
}
