package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// FailureKind classifies per-record failures for counting and reports.
type FailureKind string

// Failure kinds.
const (
	KindMissingField FailureKind = "missing_field"
	KindDiscarded    FailureKind = "discarded"
	KindGeocode      FailureKind = "geocode_unavailable"
	KindValidation   FailureKind = "validation"
	KindDuplicate    FailureKind = "duplicate"
	KindClosed       FailureKind = "permanently_closed"
	KindStorage      FailureKind = "storage"
	KindOther        FailureKind = "other"
)

// MissingFieldError reports a mandatory source field absent from a row.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("Champ %s manquant", e.Field)
}

// DiscardedError reports a row excluded by a source rule.
type DiscardedError struct {
	Reason string
}

func (e *DiscardedError) Error() string {
	return e.Reason
}

// GeocodeUnavailableError reports an address no provider could locate and
// no fallback coordinates.
type GeocodeUnavailableError struct {
	Address string
}

func (e *GeocodeUnavailableError) Error() string {
	return "Adresse non localisable: " + e.Address
}

// ValidationError maps field names to their validation messages.
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string][]string{field: {msg}}}
}

// Add records msg for field.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// Empty reports whether no message was recorded.
func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + strings.Join(e.Fields[k], ", ")
	}
	return strings.Join(parts, "; ")
}

// DuplicateError reports that the record already exists as ExistingID.
type DuplicateError struct {
	ExistingID int64
	Reason     string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s (pk=%d)", e.Reason, e.ExistingID)
}

// PermanentlyClosedError reports a match against a permanently closed
// establishment.
type PermanentlyClosedError struct {
	ExistingID int64
}

func (e *PermanentlyClosedError) Error() string {
	return fmt.Sprintf("Établissement définitivement fermé (pk=%d)", e.ExistingID)
}

// StorageError wraps a persistence failure on a single record.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Kind classifies err.
func Kind(err error) FailureKind {
	var (
		missing   *MissingFieldError
		discarded *DiscardedError
		geocode   *GeocodeUnavailableError
		invalid   *ValidationError
		dup       *DuplicateError
		closed    *PermanentlyClosedError
		storage   *StorageError
	)
	switch {
	case errors.As(err, &missing):
		return KindMissingField
	case errors.As(err, &discarded):
		return KindDiscarded
	case errors.As(err, &geocode):
		return KindGeocode
	case errors.As(err, &dup):
		return KindDuplicate
	case errors.As(err, &closed):
		return KindClosed
	case errors.As(err, &invalid):
		return KindValidation
	case errors.As(err, &storage):
		return KindStorage
	default:
		return KindOther
	}
}
