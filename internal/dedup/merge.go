package dedup

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/acceslibre/erpsync/internal/access"
	"github.com/acceslibre/erpsync/internal/model"
)

// MergeConflictError reports a field answered differently on both sides.
type MergeConflictError struct {
	Field string
	Main  any
	Other any
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("dedup: conflicting values for %s: %s != %s",
		e.Field, access.Format(e.Main), access.Format(e.Other))
}

// SameAccessibility reports whether a and b answer every accessibility field
// identically.
func SameAccessibility(a, b model.Establishment) bool {
	return a.Accessibility.Equal(b.Accessibility)
}

// Merge copies into main the answers of other that main leaves empty, for
// the given fields or every accessibility field. A field answered
// differently on both sides aborts the merge with a *MergeConflictError and
// main is left as it was.
func Merge(main *model.Establishment, other model.Establishment, fields ...string) error {
	if len(fields) == 0 {
		fields = access.Names()
	}

	merged := main.Accessibility.Clone()
	for _, name := range fields {
		mv, ov := merged.Get(name), other.Accessibility.Get(name)
		switch {
		case access.ValuesEqual(mv, ov):
		case access.IsEmpty(ov):
		case access.IsEmpty(mv):
			if err := merged.Set(name, ov); err != nil {
				return eris.Wrapf(err, "dedup: merge %s", name)
			}
		default:
			return &MergeConflictError{Field: name, Main: mv, Other: ov}
		}
	}
	if err := merged.Check(); err != nil {
		return eris.Wrap(err, "dedup: merged answers")
	}

	main.Accessibility = merged
	return nil
}
