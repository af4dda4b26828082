// Package lookup turns TPM search results into the values a caller asked
// for: sorted, reduced to the first match unless all results are wanted,
// and projected onto a single field.
package lookup

import (
	"errors"
	"fmt"
	"sort"

	"github.com/systmms/tpmops/pkg/tpm"
)

// FieldAll projects an entry onto itself.
const FieldAll = "all"

// Default projected fields.
const (
	DefaultPasswordField = "password"
	DefaultProjectField  = "id"
)

// ErrUnknownField is returned in strict mode when the projected field is
// not a key of the entry.
var ErrUnknownField = errors.New("unknown field")

// Entry is what the selector needs from a password or project.
type Entry interface {
	EntryID() int
	EntryName() string
	Field(name string) (interface{}, bool)
}

// Options controls selection and projection.
type Options struct {
	// All keeps every result instead of only the first one.
	All bool

	// Field to project onto; FieldAll for the whole entry. Empty means
	// the resource default.
	Field string

	// StrictField fails with ErrUnknownField when Field is neither
	// FieldAll nor a key of the entry. By default the whole entry is
	// returned instead.
	StrictField bool
}

func (o Options) field(def string) string {
	if o.Field == "" {
		return def
	}
	return o.Field
}

// NoMatchError reports an empty result for a single-result lookup.
type NoMatchError struct {
	Query string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("Query %q did not match any result", e.Query)
}

// Is makes errors.Is(err, tpm.ErrNoResult) hold.
func (e *NoMatchError) Is(target error) bool {
	return target == tpm.ErrNoResult
}

// Select sorts entries by name, keeps the first one unless opts.All, and
// projects each survivor onto field.
func Select[E Entry](query string, entries []E, field string, opts Options) ([]interface{}, error) {
	sorted := append([]E(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EntryName() < sorted[j].EntryName()
	})

	if !opts.All {
		if len(sorted) == 0 {
			return nil, &NoMatchError{Query: query}
		}
		sorted = sorted[:1]
	}

	out := make([]interface{}, 0, len(sorted))
	for _, e := range sorted {
		v, err := Project(e, field, opts.StrictField)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Project returns the value of field on e, or e itself for FieldAll.
func Project(e Entry, field string, strict bool) (interface{}, error) {
	if field == FieldAll {
		return e, nil
	}
	if v, ok := e.Field(field); ok {
		return v, nil
	}
	if strict {
		return nil, fmt.Errorf("%w %q on entry %d", ErrUnknownField, field, e.EntryID())
	}
	return e, nil
}
