// Package directory manages profiles scoped to their owning user.
package directory

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/willow/internal/errors"
	"github.com/hpungsan/willow/internal/profile"
	"github.com/hpungsan/willow/internal/store"
)

// Observer is told about profile deletions before Delete returns.
type Observer interface {
	OnProfileDeleted(ctx context.Context, profileID string) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, profileID string) error

func (f ObserverFunc) OnProfileDeleted(ctx context.Context, profileID string) error {
	return f(ctx, profileID)
}

// Directory is the profile directory.
type Directory struct {
	adapter store.Adapter
	log     *zap.Logger
}

// New creates a Directory over adapter.
func New(adapter store.Adapter, log *zap.Logger) *Directory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Directory{adapter: adapter, log: log}
}

// Create validates and stores a new profile. Nothing is written if the
// display name is blank or the age band is unknown.
func (d *Directory) Create(ctx context.Context, userID, displayName, ageBand string) (*profile.Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.NewUnauthenticated()
	}
	name := profile.NormalizeDisplayName(displayName)
	if name == "" {
		return nil, errors.NewInvalidRequest("display_name is required")
	}
	band, err := profile.ParseAgeBand(ageBand)
	if err != nil {
		return nil, err
	}

	row, err := store.PrepareInsert(store.Profiles, store.Row{
		"user_id":      userID,
		"display_name": name,
		"age_mode":     string(band),
	})
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if _, err := d.adapter.Insert(ctx, store.Profiles, row); err != nil {
		return nil, errors.NewStoreUnavailable("insert profile", err)
	}

	p := fromRow(row)
	d.log.Info("profile created",
		zap.String("profile_id", p.ID),
		zap.String("user_id", userID))
	return &p, nil
}

// List returns the user's profiles oldest first.
func (d *Directory) List(ctx context.Context, userID string) ([]profile.Profile, error) {
	rows, err := d.adapter.Find(ctx, store.Profiles, store.Filter{"user_id": userID})
	if err != nil {
		return nil, errors.NewStoreUnavailable("list profiles", err)
	}
	out := make([]profile.Profile, len(rows))
	for i, row := range rows {
		out[i] = fromRow(row)
	}
	return out, nil
}

// Get returns the profile if it exists and belongs to userID. A profile
// owned by someone else is reported as not found.
func (d *Directory) Get(ctx context.Context, userID, profileID string) (*profile.Profile, error) {
	if profileID == "" {
		return nil, errors.NewInvalidRequest("profile_id is required")
	}
	rows, err := d.adapter.Find(ctx, store.Profiles, store.Filter{"id": profileID, "user_id": userID})
	if err != nil {
		return nil, errors.NewStoreUnavailable("find profile", err)
	}
	if len(rows) == 0 {
		return nil, errors.NewNotFound("profile", profileID)
	}
	p := fromRow(rows[0])
	return &p, nil
}

// Delete removes the profile and notifies observers before returning. The
// profile's avatar records are left in place, unreachable.
func (d *Directory) Delete(ctx context.Context, userID, profileID string, observers ...Observer) error {
	if profileID == "" {
		return errors.NewInvalidRequest("profile_id is required")
	}
	n, err := d.adapter.Delete(ctx, store.Profiles, store.Filter{"id": profileID, "user_id": userID})
	if err != nil {
		return errors.NewStoreUnavailable("delete profile", err)
	}
	if n == 0 {
		return errors.NewNotFound("profile", profileID)
	}

	for _, o := range observers {
		if err := o.OnProfileDeleted(ctx, profileID); err != nil {
			d.log.Warn("profile deletion observer failed",
				zap.String("profile_id", profileID),
				zap.Error(err))
			return errors.NewStoreUnavailable("notify profile deletion", err)
		}
	}

	d.log.Info("profile deleted",
		zap.String("profile_id", profileID),
		zap.String("user_id", userID))
	return nil
}

func fromRow(row store.Row) profile.Profile {
	return profile.Profile{
		ID:          row.String("id"),
		UserID:      row.String("user_id"),
		DisplayName: row.String("display_name"),
		AgeBand:     profile.AgeBand(row.String("age_mode")),
		CreatedAt:   row.Int("created_at"),
	}
}
