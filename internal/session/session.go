// Package session holds the per-session pointer to the profile a client is
// acting on. The pointer lives in a session-scoped key/value cache, not in
// the record store, and is never shared across sessions.
package session

import (
	"context"
	"fmt"
)

// ActiveProfileKey is the cache key that stores the selected profile id.
const ActiveProfileKey = "willow_active_profile_id"

// Cache is a key/value cache scoped to one client session.
type Cache interface {
	// Get returns the value and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Backend hands out the cache for a session id.
type Backend interface {
	ForSession(sessionID string) (Cache, error)
}

// Pointer is the session's cached "current profile". It is a cache of user
// intent and is not validated here.
type Pointer struct {
	cache Cache
}

// NewPointer creates a Pointer over a session cache.
func NewPointer(cache Cache) *Pointer {
	return &Pointer{cache: cache}
}

// Open returns the Pointer for sessionID on backend.
func Open(backend Backend, sessionID string) (*Pointer, error) {
	cache, err := backend.ForSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("open session %s: %w", sessionID, err)
	}
	return NewPointer(cache), nil
}

// Select stores profileID as the current profile.
func (p *Pointer) Select(ctx context.Context, profileID string) error {
	return p.cache.Set(ctx, ActiveProfileKey, profileID)
}

// Current returns the stored profile id, or "" when nothing is selected.
func (p *Pointer) Current(ctx context.Context) (string, error) {
	v, ok, err := p.cache.Get(ctx, ActiveProfileKey)
	if err != nil || !ok {
		return "", err
	}
	return v, nil
}

// Clear drops the selection.
func (p *Pointer) Clear(ctx context.Context) error {
	return p.cache.Remove(ctx, ActiveProfileKey)
}

// OnProfileDeleted clears the pointer if it references profileID.
func (p *Pointer) OnProfileDeleted(ctx context.Context, profileID string) error {
	cur, err := p.Current(ctx)
	if err != nil {
		return err
	}
	if cur != profileID {
		return nil
	}
	return p.Clear(ctx)
}
