package dedup

import (
	"context"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/acceslibre/erpsync/internal/erp"
	"github.com/acceslibre/erpsync/internal/model"
)

// SweepReport sums up a maintenance sweep.
type SweepReport struct {
	Scanned   int
	ToDelete  int
	Unhandled int
	Merged    int
	// Manual lists the pairs left for a human, as "<pk>;<pk>;Need manual check…".
	Manual []string
	// Deleted holds the removed ids, only filled when writing.
	Deleted []int64
}

// Summary renders the counters the way the sweep prints them.
func (r *SweepReport) Summary() string {
	return fmt.Sprintf("Will delete %d\nNumber of unhandled %d\nNeed manual review %d",
		r.ToDelete, r.Unhandled, len(r.Manual))
}

// Sweep walks published or closed establishments, oldest first, and folds
// each group of duplicates into its main establishment. Without write it
// only counts what it would do.
func (r *Resolver) Sweep(ctx context.Context, write bool) (*SweepReport, error) {
	ids, err := r.repo.SweepIDs(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "dedup: list establishments")
	}

	report := &SweepReport{}
	done := make(map[int64]bool)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if done[id] {
			continue
		}
		e, err := r.repo.Get(ctx, id)
		if err != nil {
			return report, eris.Wrapf(err, "dedup: get %d", id)
		}
		if e == nil {
			continue
		}
		report.Scanned++

		group, err := r.group(ctx, e, report)
		if err != nil {
			return report, err
		}
		if len(group) < 2 {
			continue
		}
		if err := r.resolve(ctx, group, write, report, done); err != nil {
			return report, err
		}
	}

	r.log.Info("sweep finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("to_delete", report.ToDelete),
		zap.Int("unhandled", report.Unhandled),
		zap.Int("manual", len(report.Manual)),
		zap.Bool("write", write),
	)
	return report, nil
}

// group returns e followed by its duplicates. Candidates past the near
// radius join only when CheckAutomaticMerge allows it.
func (r *Resolver) group(ctx context.Context, e *model.Establishment, report *SweepReport) ([]model.Establishment, error) {
	candidates, err := r.FindCandidates(ctx, e)
	if err != nil {
		return nil, err
	}
	group := []model.Establishment{*e}
	for _, c := range candidates {
		if e.Geom.DistanceMeters(*c.Geom) <= r.near {
			group = append(group, c)
			continue
		}
		switch err := CheckAutomaticMerge(*e, c); {
		case err == nil:
			group = append(group, c)
		case errors.Is(err, ErrNeedsManualInspection):
			report.Manual = append(report.Manual,
				fmt.Sprintf("%d;%d;Need manual check for ERP %s with %s", e.ID, c.ID, e.Nom, c.Nom))
		}
	}
	return group, nil
}

func (r *Resolver) resolve(ctx context.Context, group []model.Establishment, write bool, report *SweepReport, done map[int64]bool) error {
	log := r.log.With(zap.Int64("erp_id", group[0].ID), zap.Int("group", len(group)))

	var open []model.Establishment
	closed := false
	for _, e := range group {
		if e.PermanentlyClosed {
			closed = true
		} else {
			open = append(open, e)
		}
	}
	if closed {
		report.ToDelete += len(open)
		for _, e := range group {
			done[e.ID] = true
		}
		if write {
			return r.apply(ctx, nil, open, report)
		}
		return nil
	}

	main, dups, err := FindMainAndDuplicates(group)
	if err != nil {
		log.Debug("no main establishment", zap.Error(err))
		report.Unhandled += len(group) - 1
		return nil
	}
	changed := keepIdentifiers(&main, dups, log)

	var remove []model.Establishment
	switch {
	case allSame(main, dups):
		remove = dups
	case len(dups) == 1:
		if err := Merge(&main, dups[0]); err != nil {
			var conflict *MergeConflictError
			if !errors.As(err, &conflict) {
				return err
			}
			log.Info("merge conflict", zap.String("field", conflict.Field), zap.Int64("other_id", dups[0].ID))
			report.Unhandled++
			return nil
		}
		changed = true
		report.Merged++
		remove = dups
	default:
		report.Unhandled += len(dups)
		return nil
	}

	report.ToDelete += len(remove)
	done[main.ID] = true
	for _, d := range remove {
		done[d.ID] = true
	}
	if !write {
		return nil
	}
	if !changed {
		return r.apply(ctx, nil, remove, report)
	}
	return r.apply(ctx, &main, remove, report)
}

// keepIdentifiers moves to main the legacy asp_id and the street number of
// its duplicates when main has none and the duplicates agree on a single
// value. It reports whether main changed.
func keepIdentifiers(main *model.Establishment, dups []model.Establishment, log *zap.Logger) bool {
	changed := false
	if main.ASPID == "" {
		if v, ok := unique(dups, func(e model.Establishment) string { return e.ASPID }, "asp_id", log); ok {
			main.ASPID = v
			changed = true
		}
	}
	if main.Numero == "" {
		if v, ok := unique(dups, func(e model.Establishment) string { return e.Numero }, "numero", log); ok {
			main.Numero = v
			changed = true
		}
	}
	return changed
}

func unique(dups []model.Establishment, get func(model.Establishment) string, field string, log *zap.Logger) (string, bool) {
	seen := make(map[string]bool)
	var value string
	for _, d := range dups {
		if v := get(d); v != "" && !seen[v] {
			seen[v] = true
			value = v
		}
	}
	if len(seen) > 1 {
		log.Warn("duplicates disagree, value not kept", zap.String("field", field), zap.Int("values", len(seen)))
		return "", false
	}
	return value, len(seen) == 1
}

func allSame(main model.Establishment, dups []model.Establishment) bool {
	for _, d := range dups {
		if !SameAccessibility(main, d) {
			return false
		}
	}
	return true
}

// apply deletes remove then saves main, in one transaction.
func (r *Resolver) apply(ctx context.Context, main *model.Establishment, remove []model.Establishment, report *SweepReport) error {
	err := r.repo.WithTx(ctx, func(tx erp.Repository) error {
		for _, d := range remove {
			if err := tx.Delete(ctx, d.ID); err != nil {
				return err
			}
		}
		if main != nil {
			return tx.Update(ctx, main)
		}
		return nil
	})
	if err != nil {
		return eris.Wrap(err, "dedup: apply")
	}
	for _, d := range remove {
		report.Deleted = append(report.Deleted, d.ID)
	}
	return nil
}
