// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file defines the error values surfaced by the
// repository, most notably StoreError, which keeps row-level insert failures
// structured so callers can log them faithfully.
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that a row with the same key already exists.
var ErrDuplicate = errors.New("duplicate")

// ErrAmbiguous indicates that a lookup expected to match one row matched several.
var ErrAmbiguous = errors.New("ambiguous")

// Field-level failure reasons.
const (
	ReasonDuplicate = "duplicate"
	ReasonInvalid   = "invalid"
	ReasonTimeout   = "timeout"
	ReasonBackend   = "backendError"
)

// FieldError is one failure attached to a row.
type FieldError struct {
	Reason   string `json:"reason"`
	Location string `json:"location,omitempty"`
	Message  string `json:"message"`
}

// RowError groups the failures of the row at Index within one insert call.
type RowError struct {
	Index  int          `json:"index"`
	Errors []FieldError `json:"errors"`
}

// StoreError reports a failed insert into Table. Rows carries the structured
// per-row detail; Err is the driver error it was built from.
type StoreError struct {
	Table string     `json:"table"`
	Rows  []RowError `json:"rows"`
	Err   error      `json:"-"`
}

// Error renders the flattened field errors as JSON.
func (e *StoreError) Error() string {
	flat := make([]FieldError, 0, len(e.Rows))
	for _, r := range e.Rows {
		flat = append(flat, r.Errors...)
	}
	b, err := json.Marshal(flat)
	if err != nil {
		return "store error on " + e.Table
	}
	return "insert into " + e.Table + ": " + string(b)
}

// Unwrap exposes the driver error.
func (e *StoreError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrDuplicate) match key violations.
func (e *StoreError) Is(target error) bool {
	if target != ErrDuplicate {
		return false
	}
	for _, r := range e.Rows {
		for _, f := range r.Errors {
			if f.Reason == ReasonDuplicate {
				return true
			}
		}
	}
	return false
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (e *StoreError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("table", e.Table).Array("rows", rowErrors(e.Rows))
}

type rowErrors []RowError

func (rs rowErrors) MarshalZerologArray(a *zerolog.Array) {
	for _, r := range rs {
		a.Object(r)
	}
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (r RowError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Int("index", r.Index).Array("errors", fieldErrors(r.Errors))
}

type fieldErrors []FieldError

func (fs fieldErrors) MarshalZerologArray(a *zerolog.Array) {
	for _, f := range fs {
		a.Object(f)
	}
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (f FieldError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("reason", f.Reason).Str("message", f.Message)
	if f.Location != "" {
		ev.Str("location", f.Location)
	}
}

// newStoreError classifies a driver error for the row at index of table.
func newStoreError(table string, index int, err error) *StoreError {
	return &StoreError{
		Table: table,
		Rows: []RowError{{
			Index:  index,
			Errors: []FieldError{{Reason: classify(err), Message: err.Error()}},
		}},
		Err: err,
	}
}

func classify(err error) string {
	switch {
	case isDuplicateKey(err):
		return ReasonDuplicate
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ReasonTimeout
	case errors.Is(err, gorm.ErrInvalidData), errors.Is(err, gorm.ErrInvalidField),
		errors.Is(err, gorm.ErrInvalidValue), errors.Is(err, gorm.ErrCheckConstraintViolated):
		return ReasonInvalid
	default:
		return ReasonBackend
	}
}

// isDuplicateKey detects unique/primary-key violations. glebarez/sqlite
// often returns plain-text errors, so message matching backs up ErrDuplicatedKey.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "constraint failed: primary key") ||
		strings.Contains(low, "duplicate key value")
}
