package ops

import (
	"context"

	"github.com/hpungsan/willow/internal/directory"
	"github.com/hpungsan/willow/internal/errors"
	"github.com/hpungsan/willow/internal/profile"
	"github.com/hpungsan/willow/internal/session"
)

// ListProfilesOutput contains the caller's profiles.
type ListProfilesOutput struct {
	Profiles []profile.Profile `json:"profiles"`
}

// ListProfiles returns the caller's profiles, oldest first.
func (c *Core) ListProfiles(ctx context.Context) (*ListProfilesOutput, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	profiles, err := c.Directory.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profiles == nil {
		profiles = []profile.Profile{}
	}
	return &ListProfilesOutput{Profiles: profiles}, nil
}

// CreateProfileInput contains parameters for CreateProfile.
type CreateProfileInput struct {
	DisplayName string
	AgeBand     string // default: 4–6

	// Select makes the new profile current for the session.
	Select bool
}

// CreateProfile adds a profile for the caller.
func (c *Core) CreateProfile(ctx context.Context, ptr *session.Pointer, input CreateProfileInput) (*profile.Profile, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if input.Select && ptr == nil {
		return nil, errors.NewInvalidRequest("select requires a session")
	}
	p, err := c.Directory.Create(ctx, userID, input.DisplayName, input.AgeBand)
	if err != nil {
		return nil, err
	}
	if input.Select {
		if err := ptr.Select(ctx, p.ID); err != nil {
			return nil, errors.NewStoreUnavailable("write session", err)
		}
	}
	return p, nil
}

// DeleteProfileInput contains parameters for DeleteProfile.
type DeleteProfileInput struct {
	ProfileID string
}

// DeleteProfileOutput reports a deletion.
type DeleteProfileOutput struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// DeleteProfile removes one of the caller's profiles. The session pointer,
// when given, is cleared before this returns if it referenced the profile.
func (c *Core) DeleteProfile(ctx context.Context, ptr *session.Pointer, input DeleteProfileInput) (*DeleteProfileOutput, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	var observers []directory.Observer
	if ptr != nil {
		observers = append(observers, ptr)
	}
	if err := c.Directory.Delete(ctx, userID, input.ProfileID, observers...); err != nil {
		return nil, err
	}
	return &DeleteProfileOutput{ID: input.ProfileID, Deleted: true}, nil
}

// SelectProfileInput contains parameters for SelectProfile.
type SelectProfileInput struct {
	ProfileID string
}

// SelectProfile makes one of the caller's profiles current for the session.
// Unknown profiles are rejected and the pointer is left unchanged.
func (c *Core) SelectProfile(ctx context.Context, ptr *session.Pointer, input SelectProfileInput) (*profile.Profile, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if ptr == nil {
		return nil, errors.NewInvalidRequest("no session")
	}
	p, err := c.Directory.Get(ctx, userID, input.ProfileID)
	if err != nil {
		return nil, err
	}
	if err := ptr.Select(ctx, p.ID); err != nil {
		return nil, errors.NewStoreUnavailable("write session", err)
	}
	return p, nil
}

// CurrentProfileOutput reports the session's current profile.
type CurrentProfileOutput struct {
	Selected bool             `json:"selected"`
	Profile  *profile.Profile `json:"profile,omitempty"`
}

// CurrentProfile returns the profile the session points at. A missing or
// stale selection is reported as Selected=false, not as an error; a stale
// pointer is cleared.
func (c *Core) CurrentProfile(ctx context.Context, ptr *session.Pointer) (*CurrentProfileOutput, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	p, err := c.resolveProfile(ctx, userID, ptr, "")
	if errors.Is(err, errors.ErrNoProfileSelected) {
		return &CurrentProfileOutput{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &CurrentProfileOutput{Selected: true, Profile: p}, nil
}
