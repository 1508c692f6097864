// Package store defines the persistence contract for profiles.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/grafana/flamekeeper/pkg/model"
)

// Store keeps profile records. Implementations must be safe for concurrent
// use. Statements are atomic per row only: operations taking a Filter with
// Unlocked set check the lock in the same statement that modifies the row.
type Store interface {
	// Insert adds a new profile and returns its id.
	Insert(ctx context.Context, p *model.Profile) (int64, error)
	// Get returns model.ErrProfileNotFound if there is no such profile.
	Get(ctx context.Context, id int64) (*model.Profile, error)
	Update(ctx context.Context, id int64, u model.ProfileUpdate) error

	// ClearReason removes the reason bits from the matching profiles and
	// returns the number of rows changed.
	ClearReason(ctx context.Context, f Filter, r model.Reason) (int64, error)
	// DeleteWhere removes the matching profiles and returns their number.
	DeleteWhere(ctx context.Context, f Filter) (int64, error)

	// TopByDuration returns the matching profiles ranked by duration, then
	// by id, both descending. A negative limit returns all of them.
	// FlameData is not loaded.
	TopByDuration(ctx context.Context, f Filter, limit, offset int) ([]model.Profile, error)
	CountDistinct(ctx context.Context, field Field, f Filter) (int64, error)
	// SumGroupBy groups the matching profiles by a field and sums another.
	// Groups are sorted by key.
	SumGroupBy(ctx context.Context, by, sum Field, f Filter) ([]Group, error)

	Close() error
}

// Filter selects profiles. Empty fields match everything, and the set fields
// must all match.
type Filter struct {
	// IDs restricts the filter to the listed profiles. A non-nil empty
	// list matches nothing.
	IDs   []int64
	Scope *string
	// Reason matches profiles holding any of the bits.
	Reason model.Reason
	// NoReason matches profiles holding no reason at all.
	NoReason bool
	// Unlocked matches profiles without a lock reason.
	Unlocked      bool
	CreatedBefore time.Time
}

// Match evaluates the filter against a single profile.
func (f Filter) Match(p *model.Profile) bool {
	if f.IDs != nil && !containsID(f.IDs, p.ID) {
		return false
	}
	if f.Scope != nil && p.Scope != *f.Scope {
		return false
	}
	if f.Reason != model.ReasonNone && !p.Reason.Has(f.Reason) {
		return false
	}
	if f.NoReason && p.Reason != model.ReasonNone {
		return false
	}
	if f.Unlocked && p.Locked() {
		return false
	}
	if !f.CreatedBefore.IsZero() && !p.CreatedAt.Before(f.CreatedBefore) {
		return false
	}
	return true
}

func containsID(ids []int64, id int64) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// Field names a profile attribute that can be grouped or summed.
type Field string

const (
	FieldScope       Field = "scope"
	FieldScriptType  Field = "script_type"
	FieldDuration    Field = "duration"
	FieldSampleCount Field = "sample_count"
	FieldDataSize    Field = "data_size"
)

func (f Field) Valid() bool {
	switch f {
	case FieldScope, FieldScriptType, FieldDuration, FieldSampleCount, FieldDataSize:
		return true
	}
	return false
}

// Numeric reports whether the field can be summed.
func (f Field) Numeric() bool {
	switch f {
	case FieldDuration, FieldSampleCount, FieldDataSize:
		return true
	}
	return false
}

func InvalidFieldError(f Field) error {
	return model.ValidationError{Err: fmt.Errorf("invalid field %q", string(f))}
}

// Group is a row of SumGroupBy. Durations are summed in nanoseconds.
type Group struct {
	Key   string
	Count int64
	Sum   float64
}
