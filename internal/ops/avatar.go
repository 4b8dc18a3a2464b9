package ops

import (
	"context"

	"github.com/hpungsan/willow/internal/avatar"
	"github.com/hpungsan/willow/internal/errors"
	"github.com/hpungsan/willow/internal/history"
	"github.com/hpungsan/willow/internal/profile"
	"github.com/hpungsan/willow/internal/session"
	"github.com/hpungsan/willow/internal/swap"
)

// GetAvatarInput contains parameters for GetActiveAvatar.
type GetAvatarInput struct {
	ProfileID string // default: the session's current profile
}

// AvatarOutput is the avatar configuration to display or edit.
type AvatarOutput struct {
	ProfileID  string            `json:"profile_id"`
	RecordID   string            `json:"record_id,omitempty"`
	Attributes avatar.Attributes `json:"attributes"`

	// IsDefault is true when nothing active was found and the default
	// configuration was substituted.
	IsDefault bool `json:"is_default"`

	// Violation is set when the single-active rule was found broken.
	Violation *history.Violation `json:"violation,omitempty"`
}

// GetActiveAvatar resolves the profile's active avatar. A profile that never
// saved one gets the default configuration. A broken single-active rule is
// reported in the output, not as an error.
func (c *Core) GetActiveAvatar(ctx context.Context, ptr *session.Pointer, input GetAvatarInput) (*AvatarOutput, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	p, err := c.resolveProfile(ctx, userID, ptr, input.ProfileID)
	if err != nil {
		return nil, err
	}

	res, err := c.History.GetActive(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	out := &AvatarOutput{ProfileID: p.ID, Violation: res.Violation}
	if res.Record == nil {
		out.Attributes = avatar.Default()
		out.IsDefault = true
		return out, nil
	}
	out.RecordID = res.Record.ID
	out.Attributes = res.Record.Attributes
	return out, nil
}

// SaveAvatarInput contains parameters for SaveAvatar.
type SaveAvatarInput struct {
	ProfileID  string // default: the session's current profile
	Attributes avatar.Attributes

	// Resume retries only the insert step after a PARTIALLY_COMMITTED save.
	// A profile that still has an active avatar gets a full save instead.
	Resume bool
}

// SaveAvatarOutput reports a completed save.
type SaveAvatarOutput struct {
	ProfileID string `json:"profile_id"`
	swap.Outcome
}

// SaveAvatar makes input.Attributes the profile's active avatar. Attributes
// are validated before anything is written. On PARTIALLY_COMMITTED the
// profile has no active avatar until the save is retried with Resume.
func (c *Core) SaveAvatar(ctx context.Context, ptr *session.Pointer, input SaveAvatarInput) (*SaveAvatarOutput, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	attrs := input.Attributes.Normalize()
	if err := attrs.Validate(); err != nil {
		return nil, err
	}
	p, err := c.resolveProfile(ctx, userID, ptr, input.ProfileID)
	if err != nil {
		return nil, err
	}

	var outcome *swap.Outcome
	if input.Resume {
		outcome, err = c.Swap.Resume(ctx, p.ID, attrs)
	} else {
		outcome, err = c.Swap.Swap(ctx, p.ID, attrs)
	}
	if err != nil {
		return nil, err
	}
	return &SaveAvatarOutput{ProfileID: p.ID, Outcome: *outcome}, nil
}

// HistoryInput contains parameters for AvatarHistory.
type HistoryInput struct {
	ProfileID string // default: the session's current profile
	Limit     int    // default: 20, max: 100
	Offset    int
}

// HistoryOutput lists a profile's saved avatars, newest first.
type HistoryOutput struct {
	ProfileID  string          `json:"profile_id"`
	Records    []avatar.Record `json:"records"`
	Pagination Pagination      `json:"pagination"`
}

// AvatarHistory lists the profile's saved avatars, newest first.
func (c *Core) AvatarHistory(ctx context.Context, ptr *session.Pointer, input HistoryInput) (*HistoryOutput, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if input.Offset < 0 {
		return nil, errors.NewInvalidRequest("offset must not be negative")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	p, err := c.resolveProfile(ctx, userID, ptr, input.ProfileID)
	if err != nil {
		return nil, err
	}
	records, err := c.History.List(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	total := len(records)
	start := min(input.Offset, total)
	end := min(start+limit, total)
	page := records[start:end]
	if page == nil {
		page = []avatar.Record{}
	}
	return &HistoryOutput{
		ProfileID: p.ID,
		Records:   page,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  input.Offset,
			HasMore: end < total,
			Total:   total,
		},
	}, nil
}

// RepairInput contains parameters for RepairAvatar.
type RepairInput struct {
	ProfileID string // default: the session's current profile
}

// RepairOutput reports what a repair changed.
type RepairOutput struct {
	ProfileID string `json:"profile_id"`
	Repaired  bool   `json:"repaired"`
	history.RepairResult
}

// RepairAvatar restores the single-active rule for the profile.
func (c *Core) RepairAvatar(ctx context.Context, ptr *session.Pointer, input RepairInput) (*RepairOutput, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	p, err := c.resolveProfile(ctx, userID, ptr, input.ProfileID)
	if err != nil {
		return nil, err
	}
	res, err := c.History.Repair(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &RepairOutput{
		ProfileID:    p.ID,
		Repaired:     res.Violation != nil,
		RepairResult: *res,
	}, nil
}

// CatalogOutput lists every valid option clients may offer.
type CatalogOutput struct {
	Catalogs []avatar.Catalog  `json:"catalogs"`
	Default  avatar.Attributes `json:"default"`
	AgeBands []profile.AgeBand `json:"age_bands"`
}

// Catalog returns the option catalogs. Like every operation it refuses a
// caller without an identity.
func (c *Core) Catalog(ctx context.Context) (*CatalogOutput, error) {
	if _, err := requireUser(ctx); err != nil {
		return nil, err
	}
	return &CatalogOutput{
		Catalogs: avatar.Catalogs(),
		Default:  avatar.Default(),
		AgeBands: profile.AgeBands,
	}, nil
}
