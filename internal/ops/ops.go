// Package ops is the single API every surface (CLI, MCP, HTTP) calls.
// Operations take the caller's identity from the context and, where they act
// on "the current profile", an explicit session pointer.
package ops

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/willow/internal/directory"
	"github.com/hpungsan/willow/internal/errors"
	"github.com/hpungsan/willow/internal/history"
	"github.com/hpungsan/willow/internal/identity"
	"github.com/hpungsan/willow/internal/profile"
	"github.com/hpungsan/willow/internal/session"
	"github.com/hpungsan/willow/internal/store"
	"github.com/hpungsan/willow/internal/swap"
)

// Pagination limits
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Options configures a Core.
type Options struct {
	// TwoStepOnly forces the two-write swap even when the store can swap
	// atomically.
	TwoStepOnly bool

	// Locker serializes swaps per profile. Nil means no locking.
	Locker swap.Locker

	Logger *zap.Logger
}

// Core wires the profile directory, avatar history, and swap protocol over
// one record store.
type Core struct {
	Directory *directory.Directory
	History   *history.Store
	Swap      *swap.Protocol

	log *zap.Logger
}

// New builds a Core over adapter.
func New(adapter store.Adapter, opts Options) *Core {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	h := history.New(adapter, log.Named("history"))
	return &Core{
		Directory: directory.New(adapter, log.Named("directory")),
		History:   h,
		Swap: swap.New(h, swap.Options{
			TwoStepOnly: opts.TwoStepOnly,
			Locker:      opts.Locker,
			Logger:      log.Named("swap"),
		}),
		log: log,
	}
}

// resolveProfile picks the profile an avatar operation acts on. An explicit
// id wins; otherwise the session pointer is used. A pointer to a profile that
// no longer exists is cleared and treated as no selection.
func (c *Core) resolveProfile(ctx context.Context, userID string, ptr *session.Pointer, explicit string) (*profile.Profile, error) {
	if id := strings.TrimSpace(explicit); id != "" {
		return c.Directory.Get(ctx, userID, id)
	}
	if ptr == nil {
		return nil, errors.NewNoProfileSelected()
	}
	cur, err := ptr.Current(ctx)
	if err != nil {
		return nil, errors.NewStoreUnavailable("read session", err)
	}
	if cur == "" {
		return nil, errors.NewNoProfileSelected()
	}
	p, err := c.Directory.Get(ctx, userID, cur)
	if errors.Is(err, errors.ErrNotFound) {
		c.log.Debug("clearing stale session pointer", zap.String("profile_id", cur))
		if err := ptr.Clear(ctx); err != nil {
			return nil, errors.NewStoreUnavailable("clear session", err)
		}
		return nil, errors.NewNoProfileSelected()
	}
	return p, err
}

func requireUser(ctx context.Context) (string, error) {
	return identity.Require(ctx)
}
