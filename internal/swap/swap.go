// Package swap moves a profile's active avatar from the current record to a
// newly saved one.
//
// The portable protocol is two writes with no transaction between them:
//
//	Idle -> Deactivating -> Inserting -> Committed
//	            |               |
//	            v               v
//	          Failed    PartiallyCommitted
//
// Failed leaves the previous record active. PartiallyCommitted leaves the
// profile with no active record until the insert is retried with Resume.
// Adapters implementing store.AtomicSwapper collapse both writes into one
// round trip, so only Committed or Failed can result.
package swap

import (
	"context"
	stderrors "errors"

	"go.uber.org/zap"

	"github.com/hpungsan/willow/internal/avatar"
	"github.com/hpungsan/willow/internal/errors"
	"github.com/hpungsan/willow/internal/history"
	"github.com/hpungsan/willow/internal/store"
)

// State is a swap protocol state.
type State string

const (
	Idle               State = "idle"
	Deactivating       State = "deactivating"
	Inserting          State = "inserting"
	Committed          State = "committed"
	Failed             State = "failed"
	PartiallyCommitted State = "partially_committed"
)

// Terminal reports whether s ends a swap.
func (s State) Terminal() bool {
	return s == Committed || s == Failed || s == PartiallyCommitted
}

// Outcome describes how a swap ended.
type Outcome struct {
	State       State   `json:"state"`
	RecordID    string  `json:"record_id,omitempty"`
	Deactivated int64   `json:"deactivated"`
	Atomic      bool    `json:"atomic"`
	Trace       []State `json:"trace"`
}

// Options configures a Protocol.
type Options struct {
	// TwoStepOnly disables the atomic path even when the adapter supports it.
	TwoStepOnly bool

	// Locker serializes swaps per profile. Nil means no locking.
	Locker Locker

	Logger *zap.Logger
}

// Protocol runs swaps against a history store.
type Protocol struct {
	history *history.Store
	atomic  store.AtomicSwapper
	locker  Locker
	log     *zap.Logger
}

// New creates a Protocol.
func New(h *history.Store, opts Options) *Protocol {
	p := &Protocol{
		history: h,
		locker:  opts.Locker,
		log:     opts.Logger,
	}
	if p.locker == nil {
		p.locker = NopLocker{}
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	if !opts.TwoStepOnly {
		if sw, ok := h.Adapter().(store.AtomicSwapper); ok {
			p.atomic = sw
		}
	}
	return p
}

// Atomic reports whether swaps use the adapter's atomic path.
func (p *Protocol) Atomic() bool {
	return p.atomic != nil
}

// Swap makes attrs the profile's active avatar. Attributes are normalized and
// validated before any write. The returned error is a *errors.WillowError:
// INVALID_REQUEST (nothing written), STORE_UNAVAILABLE (Failed, previous
// avatar still active), or PARTIALLY_COMMITTED. The outcome is non-nil
// whenever a write was attempted.
func (p *Protocol) Swap(ctx context.Context, profileID string, attrs avatar.Attributes) (*Outcome, error) {
	attrs = attrs.Normalize()
	if err := attrs.Validate(); err != nil {
		return nil, err
	}

	release, err := p.locker.Acquire(ctx, lockKey(profileID))
	if err != nil {
		out := &Outcome{State: Failed, Trace: []State{Idle, Failed}}
		return out, errors.NewStoreUnavailable("acquire swap lock", err)
	}
	defer release()

	// Once started, a swap runs to its natural outcome even if the caller
	// goes away.
	ctx = context.WithoutCancel(ctx)

	if p.atomic != nil {
		return p.swapAtomic(ctx, profileID, attrs)
	}
	return p.swapTwoStep(ctx, profileID, attrs)
}

// Resume retries only the insert step of a PartiallyCommitted swap. If the
// profile already has an active avatar there is nothing to resume and a full
// swap runs instead. Adapters with an atomic path always take it.
func (p *Protocol) Resume(ctx context.Context, profileID string, attrs avatar.Attributes) (*Outcome, error) {
	attrs = attrs.Normalize()
	if err := attrs.Validate(); err != nil {
		return nil, err
	}

	release, err := p.locker.Acquire(ctx, lockKey(profileID))
	if err != nil {
		out := &Outcome{State: PartiallyCommitted, Trace: []State{PartiallyCommitted}}
		return out, errors.NewPartiallyCommitted(profileID, 0, err)
	}
	defer release()
	ctx = context.WithoutCancel(ctx)

	if p.atomic != nil {
		return p.swapAtomic(ctx, profileID, attrs)
	}

	active, err := p.history.CountActive(ctx, profileID)
	if err != nil {
		out := &Outcome{State: PartiallyCommitted, Trace: []State{PartiallyCommitted}}
		return out, errors.NewPartiallyCommitted(profileID, 0, unwrapCause(err))
	}
	if active > 0 {
		p.log.Debug("nothing to resume, running full swap",
			zap.String("profile_id", profileID),
			zap.Int("active_count", active))
		return p.swapTwoStep(ctx, profileID, attrs)
	}

	out := &Outcome{Trace: []State{PartiallyCommitted, Inserting}}
	return p.insert(ctx, out, profileID, attrs)
}

func (p *Protocol) swapTwoStep(ctx context.Context, profileID string, attrs avatar.Attributes) (*Outcome, error) {
	out := &Outcome{Trace: []State{Idle, Deactivating}}

	n, err := p.history.DeactivateAll(ctx, profileID)
	if err != nil {
		out.State = Failed
		out.Trace = append(out.Trace, Failed)
		p.log.Warn("avatar swap failed",
			zap.String("profile_id", profileID),
			zap.String("state", string(Deactivating)),
			zap.Error(err))
		return out, err
	}
	out.Deactivated = n
	out.Trace = append(out.Trace, Inserting)

	return p.insert(ctx, out, profileID, attrs)
}

func (p *Protocol) insert(ctx context.Context, out *Outcome, profileID string, attrs avatar.Attributes) (*Outcome, error) {
	id, err := p.history.Append(ctx, profileID, attrs)
	if err != nil {
		out.State = PartiallyCommitted
		out.Trace = append(out.Trace, PartiallyCommitted)
		p.log.Warn("avatar swap partially committed",
			zap.String("profile_id", profileID),
			zap.Int64("deactivated", out.Deactivated),
			zap.Error(err))
		return out, errors.NewPartiallyCommitted(profileID, out.Deactivated, unwrapCause(err))
	}

	out.State = Committed
	out.RecordID = id
	out.Trace = append(out.Trace, Committed)
	p.log.Debug("avatar swap committed",
		zap.String("profile_id", profileID),
		zap.String("record_id", id),
		zap.Int64("deactivated", out.Deactivated))
	return out, nil
}

func (p *Protocol) swapAtomic(ctx context.Context, profileID string, attrs avatar.Attributes) (*Outcome, error) {
	out := &Outcome{Atomic: true, Trace: []State{Idle}}

	id, n, err := p.atomic.SwapActive(ctx, profileID, history.RowFromAttributes(profileID, attrs, true))
	if err != nil {
		out.State = Failed
		out.Trace = append(out.Trace, Failed)
		p.log.Warn("atomic avatar swap failed",
			zap.String("profile_id", profileID),
			zap.Error(err))
		return out, errors.NewStoreUnavailable("swap active avatar", err)
	}

	out.State = Committed
	out.RecordID = id
	out.Deactivated = n
	out.Trace = append(out.Trace, Committed)
	return out, nil
}

func lockKey(profileID string) string {
	return "avatar-swap:" + profileID
}

// unwrapCause strips the STORE_UNAVAILABLE wrapper added by the history store
// so the partial-commit error carries the adapter's own error.
func unwrapCause(err error) error {
	if cause := stderrors.Unwrap(err); cause != nil {
		return cause
	}
	return err
}
