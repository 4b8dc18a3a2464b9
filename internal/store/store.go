// Package store defines the record store contract the core is written
// against. Adapters offer filtered reads, inserts, updates, and deletes over
// rows keyed by an opaque id. No transaction primitive is assumed; adapters
// that can swap an active row atomically implement AtomicSwapper.
package store

import (
	"context"
	"crypto/rand"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Entity names a table.
type Entity string

const (
	Profiles Entity = "profiles"
	Avatars  Entity = "avatars"
)

// Row is one record as a column -> value map. NULL is represented by nil.
// Values are string, bool, or int64 depending on the column kind.
type Row map[string]any

// Clone returns a shallow copy of r.
func (r Row) Clone() Row {
	return maps.Clone(r)
}

// String returns the string value of col, or "" if absent or NULL.
func (r Row) String(col string) string {
	s, _ := r[col].(string)
	return s
}

// NullString returns the value of col as *string (nil for NULL).
func (r Row) NullString(col string) *string {
	s, ok := r[col].(string)
	if !ok {
		return nil
	}
	return &s
}

// Bool returns the bool value of col.
func (r Row) Bool(col string) bool {
	b, _ := r[col].(bool)
	return b
}

// Int returns the int64 value of col.
func (r Row) Int(col string) int64 {
	n, _ := r[col].(int64)
	return n
}

// Filter is a conjunction of equality predicates on named columns.
type Filter map[string]any

// Keys returns the filter's columns in sorted order so generated queries
// are deterministic.
func (f Filter) Keys() []string {
	return slices.Sorted(maps.Keys(f))
}

// Matches reports whether row satisfies every predicate.
func (f Filter) Matches(row Row) bool {
	for k, v := range f {
		if row[k] != v {
			return false
		}
	}
	return true
}

// Adapter is the record store the core consumes.
//
// Find returns rows ordered by (created_at, id) ascending, which is stable for
// a given snapshot. Insert assigns an id when the row has none and returns it.
// Update and Delete return the number of affected rows.
type Adapter interface {
	Find(ctx context.Context, entity Entity, filter Filter) ([]Row, error)
	Insert(ctx context.Context, entity Entity, row Row) (string, error)
	Update(ctx context.Context, entity Entity, filter Filter, patch Row) (int64, error)
	Delete(ctx context.Context, entity Entity, filter Filter) (int64, error)
}

// AtomicSwapper is implemented by adapters that can deactivate a profile's
// active avatar and insert its replacement in one atomic step.
type AtomicSwapper interface {
	SwapActive(ctx context.Context, profileID string, row Row) (id string, deactivated int64, err error)
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID generates a ULID. IDs generated by one process sort in creation order.
func NewID() (string, error) {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// PrepareInsert validates row against the entity schema and fills id and
// created_at when absent. The returned row is a copy.
func PrepareInsert(entity Entity, row Row) (Row, error) {
	if err := CheckColumns(entity, row); err != nil {
		return nil, err
	}
	out := row.Clone()
	if out == nil {
		out = Row{}
	}
	if out.String("id") == "" {
		id, err := NewID()
		if err != nil {
			return nil, fmt.Errorf("generate id: %w", err)
		}
		out["id"] = id
	}
	if _, ok := out["created_at"]; !ok {
		out["created_at"] = time.Now().UnixMilli()
	}
	return out, nil
}
