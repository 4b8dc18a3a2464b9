// Package history owns each profile's append-only avatar history and the
// rule that at most one record per profile is active.
package history

import (
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/willow/internal/avatar"
	"github.com/hpungsan/willow/internal/errors"
	"github.com/hpungsan/willow/internal/store"
)

// ViolationKind classifies a broken single-active invariant.
type ViolationKind string

const (
	// MultipleActive: more than one record is active, typically after two
	// swaps interleaved.
	MultipleActive ViolationKind = "multiple_active"

	// NoneActive: the profile has history but nothing is active, typically
	// after a partially committed swap.
	NoneActive ViolationKind = "none_active"
)

// Violation describes a detected invariant violation.
type Violation struct {
	Kind        ViolationKind `json:"kind"`
	ActiveCount int           `json:"active_count"`
	ActiveIDs   []string      `json:"active_ids,omitempty"`
}

// Resolution is the outcome of resolving a profile's active record.
type Resolution struct {
	// Record is the active record, or nil if none is active.
	Record *avatar.Record

	// Violation is set when the invariant does not hold.
	Violation *Violation
}

// Store is the versioned attribute store.
type Store struct {
	adapter store.Adapter
	log     *zap.Logger
}

// New creates a Store over adapter.
func New(adapter store.Adapter, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{adapter: adapter, log: log}
}

// Adapter returns the underlying record store.
func (s *Store) Adapter() store.Adapter {
	return s.adapter
}

// GetActive resolves the profile's active record. Zero active records is a
// normal outcome and yields a nil Record with no error. More than one active
// record resolves to the newest and reports a MultipleActive violation.
// When nothing is active but history exists, a NoneActive violation is
// reported.
func (s *Store) GetActive(ctx context.Context, profileID string) (*Resolution, error) {
	rows, err := s.adapter.Find(ctx, store.Avatars, store.Filter{
		"profile_id": profileID,
		"is_active":  true,
	})
	if err != nil {
		return nil, errors.NewStoreUnavailable("find active avatar", err)
	}

	switch len(rows) {
	case 0:
		history, err := s.adapter.Find(ctx, store.Avatars, store.Filter{"profile_id": profileID})
		if err != nil {
			return nil, errors.NewStoreUnavailable("find avatar history", err)
		}
		if len(history) == 0 {
			return &Resolution{}, nil
		}
		v := &Violation{Kind: NoneActive}
		s.log.Warn("avatar invariant violated",
			zap.String("profile_id", profileID),
			zap.String("kind", string(v.Kind)),
			zap.Int("history", len(history)),
			zap.Error(errors.NewInvariantViolation(profileID, 0)))
		return &Resolution{Violation: v}, nil

	case 1:
		rec := recordFromRow(rows[0])
		return &Resolution{Record: &rec}, nil
	}

	records := make([]avatar.Record, len(rows))
	ids := make([]string, len(rows))
	for i, row := range rows {
		records[i] = recordFromRow(row)
		ids[i] = records[i].ID
	}
	newest := Newest(records)
	v := &Violation{Kind: MultipleActive, ActiveCount: len(rows), ActiveIDs: ids}
	s.log.Warn("avatar invariant violated",
		zap.String("profile_id", profileID),
		zap.String("kind", string(v.Kind)),
		zap.String("resolved_id", newest.ID),
		zap.Error(errors.NewInvariantViolation(profileID, len(rows))))
	return &Resolution{Record: &newest, Violation: v}, nil
}

// Append inserts attrs as a new active record for the profile. It does not
// deactivate anything; the swap protocol does that.
func (s *Store) Append(ctx context.Context, profileID string, attrs avatar.Attributes) (string, error) {
	id, err := s.adapter.Insert(ctx, store.Avatars, RowFromAttributes(profileID, attrs, true))
	if err != nil {
		return "", errors.NewStoreUnavailable("insert avatar", err)
	}
	return id, nil
}

// CountActive returns how many of the profile's records are active.
func (s *Store) CountActive(ctx context.Context, profileID string) (int, error) {
	rows, err := s.adapter.Find(ctx, store.Avatars, store.Filter{
		"profile_id": profileID,
		"is_active":  true,
	})
	if err != nil {
		return 0, errors.NewStoreUnavailable("count active avatars", err)
	}
	return len(rows), nil
}

// DeactivateAll clears is_active on every active record of the profile.
func (s *Store) DeactivateAll(ctx context.Context, profileID string) (int64, error) {
	n, err := s.adapter.Update(ctx, store.Avatars,
		store.Filter{"profile_id": profileID, "is_active": true},
		store.Row{"is_active": false})
	if err != nil {
		return 0, errors.NewStoreUnavailable("deactivate avatars", err)
	}
	return n, nil
}

// List returns the profile's records, newest first.
func (s *Store) List(ctx context.Context, profileID string) ([]avatar.Record, error) {
	rows, err := s.adapter.Find(ctx, store.Avatars, store.Filter{"profile_id": profileID})
	if err != nil {
		return nil, errors.NewStoreUnavailable("find avatar history", err)
	}
	records := make([]avatar.Record, len(rows))
	for i, row := range rows {
		records[i] = recordFromRow(row)
	}
	slices.SortFunc(records, func(a, b avatar.Record) int { return compareRecords(b, a) })
	return records, nil
}

// RepairResult reports what Repair changed.
type RepairResult struct {
	Violation   *Violation `json:"violation,omitempty"`
	ActiveID    string     `json:"active_id,omitempty"`
	Deactivated []string   `json:"deactivated,omitempty"`
	Reactivated string     `json:"reactivated,omitempty"`
}

// Repair restores the single-active invariant. With several active records
// the newest stays active and the others are deactivated one by one. With
// none active the newest record in history is reactivated. A profile with no
// history, or exactly one active record, is left alone.
func (s *Store) Repair(ctx context.Context, profileID string) (*RepairResult, error) {
	res, err := s.GetActive(ctx, profileID)
	if err != nil {
		return nil, err
	}
	out := &RepairResult{Violation: res.Violation}
	if res.Record != nil {
		out.ActiveID = res.Record.ID
	}
	if res.Violation == nil {
		return out, nil
	}

	switch res.Violation.Kind {
	case MultipleActive:
		for _, id := range res.Violation.ActiveIDs {
			if id == res.Record.ID {
				continue
			}
			if _, err := s.adapter.Update(ctx, store.Avatars,
				store.Filter{"id": id, "is_active": true},
				store.Row{"is_active": false}); err != nil {
				return nil, errors.NewStoreUnavailable("deactivate avatar", err)
			}
			out.Deactivated = append(out.Deactivated, id)
		}

	case NoneActive:
		records, err := s.List(ctx, profileID)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return out, nil
		}
		newest := records[0]
		if _, err := s.adapter.Update(ctx, store.Avatars,
			store.Filter{"id": newest.ID},
			store.Row{"is_active": true}); err != nil {
			return nil, errors.NewStoreUnavailable("reactivate avatar", err)
		}
		out.Reactivated = newest.ID
		out.ActiveID = newest.ID
	}

	s.log.Info("avatar invariant repaired",
		zap.String("profile_id", profileID),
		zap.String("kind", string(res.Violation.Kind)),
		zap.String("active_id", out.ActiveID),
		zap.Int("deactivated", len(out.Deactivated)))
	return out, nil
}

// Newest returns the most recently created record. Ties on created_at are
// broken by id, which for ULIDs is creation order.
func Newest(records []avatar.Record) avatar.Record {
	return slices.MaxFunc(records, compareRecords)
}

func compareRecords(a, b avatar.Record) int {
	switch {
	case a.CreatedAt < b.CreatedAt:
		return -1
	case a.CreatedAt > b.CreatedAt:
		return 1
	}
	return strings.Compare(a.ID, b.ID)
}

// RowFromAttributes builds an avatars row. The accessory is stored as NULL
// when absent.
func RowFromAttributes(profileID string, a avatar.Attributes, active bool) store.Row {
	var accessory any
	if a.Accessory != nil {
		accessory = *a.Accessory
	}
	return store.Row{
		"profile_id":          profileID,
		avatar.FieldSkinTone:  a.SkinTone,
		avatar.FieldFace:      a.Face,
		avatar.FieldHair:      a.Hair,
		avatar.FieldHairColor: a.HairColor,
		avatar.FieldOutfit:    a.Outfit,
		avatar.FieldAccessory: accessory,
		"is_active":           active,
	}
}

func recordFromRow(row store.Row) avatar.Record {
	return avatar.Record{
		ID:        row.String("id"),
		ProfileID: row.String("profile_id"),
		Attributes: avatar.Attributes{
			SkinTone:  row.String(avatar.FieldSkinTone),
			Face:      row.String(avatar.FieldFace),
			Hair:      row.String(avatar.FieldHair),
			HairColor: row.String(avatar.FieldHairColor),
			Outfit:    row.String(avatar.FieldOutfit),
			Accessory: avatar.NormalizeAccessory(row.NullString(avatar.FieldAccessory)),
		},
		IsActive:  row.Bool("is_active"),
		CreatedAt: row.Int("created_at"),
	}
}
