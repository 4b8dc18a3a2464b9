package ops

import (
	"context"
	"testing"

	"github.com/hpungsan/willow/internal/avatar"
	"github.com/hpungsan/willow/internal/db"
	"github.com/hpungsan/willow/internal/errors"
	"github.com/hpungsan/willow/internal/history"
	"github.com/hpungsan/willow/internal/identity"
	"github.com/hpungsan/willow/internal/session"
	"github.com/hpungsan/willow/internal/store"
	"github.com/hpungsan/willow/internal/store/storetest"
	"github.com/hpungsan/willow/internal/swap"
)

func stringPtr(s string) *string { return &s }

func userCtx(user string) context.Context {
	return identity.WithUser(context.Background(), user)
}

func newPointer() *session.Pointer {
	return session.NewPointer(session.NewMemoryCache())
}

func roundTripAttrs() avatar.Attributes {
	return avatar.Attributes{
		SkinTone:  "skin_2",
		Face:      "face_1",
		Hair:      "hair_3",
		HairColor: "black",
		Outfit:    "outfit_4",
	}
}

// newFaultyCore returns a Core over a fault-injecting memory store.
func newFaultyCore(t *testing.T) (*Core, *storetest.Faulty) {
	t.Helper()
	faulty := storetest.NewFaulty(store.NewMemory())
	return New(faulty, Options{}), faulty
}

func newSQLiteCore(t *testing.T) *Core {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return New(db.NewStore(database), Options{Locker: swap.NewLocalLocker()})
}

func mustCreate(t *testing.T, c *Core, ctx context.Context, ptr *session.Pointer, name string) string {
	t.Helper()
	p, err := c.CreateProfile(ctx, ptr, CreateProfileInput{DisplayName: name, AgeBand: "4–6", Select: ptr != nil})
	if err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}
	return p.ID
}

func TestNoIdentityRefusesEverything(t *testing.T) {
	c, faulty := newFaultyCore(t)
	ctx := context.Background()
	ptr := newPointer()

	checks := map[string]error{}
	_, checks["list"] = c.ListProfiles(ctx)
	_, checks["create"] = c.CreateProfile(ctx, ptr, CreateProfileInput{DisplayName: "Kid"})
	_, checks["delete"] = c.DeleteProfile(ctx, ptr, DeleteProfileInput{ProfileID: "p"})
	_, checks["select"] = c.SelectProfile(ctx, ptr, SelectProfileInput{ProfileID: "p"})
	_, checks["current"] = c.CurrentProfile(ctx, ptr)
	_, checks["get"] = c.GetActiveAvatar(ctx, ptr, GetAvatarInput{})
	_, checks["save"] = c.SaveAvatar(ctx, ptr, SaveAvatarInput{Attributes: roundTripAttrs()})
	_, checks["history"] = c.AvatarHistory(ctx, ptr, HistoryInput{})
	_, checks["repair"] = c.RepairAvatar(ctx, ptr, RepairInput{})
	_, checks["catalog"] = c.Catalog(ctx)

	for name, err := range checks {
		if !errors.Is(err, errors.ErrUnauthenticated) {
			t.Errorf("%s: err = %v, want UNAUTHENTICATED", name, err)
		}
	}
	if n := len(faulty.Calls()); n != 0 {
		t.Errorf("store calls = %d, want 0", n)
	}
}

func TestCreateProfile_EmptyNameWritesNothing(t *testing.T) {
	c, faulty := newFaultyCore(t)

	_, err := c.CreateProfile(userCtx("u1"), nil, CreateProfileInput{DisplayName: "", AgeBand: "4–6"})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Fatalf("err = %v, want INVALID_REQUEST", err)
	}
	if w := faulty.Writes(); w != 0 {
		t.Errorf("writes = %d, want 0", w)
	}
}

func TestCreateProfile_SelectRequiresSession(t *testing.T) {
	c, faulty := newFaultyCore(t)

	_, err := c.CreateProfile(userCtx("u1"), nil, CreateProfileInput{DisplayName: "Kid", Select: true})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Fatalf("err = %v, want INVALID_REQUEST", err)
	}
	if w := faulty.Writes(); w != 0 {
		t.Errorf("writes = %d, want 0", w)
	}
}

func TestGetActiveAvatar_DefaultsWhenNeverSaved(t *testing.T) {
	c, _ := newFaultyCore(t)
	ctx := userCtx("u1")
	ptr := newPointer()
	mustCreate(t, c, ctx, ptr, "Kid")

	out, err := c.GetActiveAvatar(ctx, ptr, GetAvatarInput{})
	if err != nil {
		t.Fatalf("GetActiveAvatar failed: %v", err)
	}
	if !out.IsDefault {
		t.Error("IsDefault = false, want true")
	}
	if out.Attributes != avatar.Default() {
		t.Errorf("Attributes = %+v, want defaults", out.Attributes)
	}
	if out.Violation != nil {
		t.Errorf("Violation = %+v, want nil", out.Violation)
	}
}

func TestSaveThenGet_RoundTrip(t *testing.T) {
	for name, c := range map[string]*Core{
		"memory": New(store.NewMemory(), Options{}),
		"sqlite": newSQLiteCore(t),
	} {
		t.Run(name, func(t *testing.T) {
			ctx := userCtx("u1")
			ptr := newPointer()
			pid := mustCreate(t, c, ctx, ptr, "Kid")

			saved, err := c.SaveAvatar(ctx, ptr, SaveAvatarInput{Attributes: roundTripAttrs()})
			if err != nil {
				t.Fatalf("SaveAvatar failed: %v", err)
			}
			if saved.State != swap.Committed {
				t.Errorf("State = %q, want committed", saved.State)
			}
			if saved.ProfileID != pid {
				t.Errorf("ProfileID = %q, want %q", saved.ProfileID, pid)
			}

			out, err := c.GetActiveAvatar(ctx, ptr, GetAvatarInput{})
			if err != nil {
				t.Fatalf("GetActiveAvatar failed: %v", err)
			}
			if out.IsDefault {
				t.Error("IsDefault = true after save")
			}
			if out.RecordID != saved.RecordID {
				t.Errorf("RecordID = %q, want %q", out.RecordID, saved.RecordID)
			}
			got := out.Attributes
			if got.SkinTone != "skin_2" || got.Face != "face_1" || got.Hair != "hair_3" ||
				got.HairColor != "black" || got.Outfit != "outfit_4" {
				t.Errorf("Attributes = %+v", got)
			}
			if got.Accessory != nil {
				t.Errorf("Accessory = %q, want absent", *got.Accessory)
			}

			again, err := c.GetActiveAvatar(ctx, ptr, GetAvatarInput{})
			if err != nil {
				t.Fatalf("GetActiveAvatar failed: %v", err)
			}
			if *again != *out {
				t.Errorf("second read = %+v, want %+v", again, out)
			}
		})
	}
}

func TestSaveAvatar_ExactlyOneActiveAfterSwaps(t *testing.T) {
	c := newSQLiteCore(t)
	ctx := userCtx("u1")
	ptr := newPointer()
	pid := mustCreate(t, c, ctx, ptr, "Kid")

	for _, outfit := range []string{"outfit_1", "outfit_2", "outfit_3"} {
		a := roundTripAttrs()
		a.Outfit = outfit
		if _, err := c.SaveAvatar(ctx, ptr, SaveAvatarInput{Attributes: a}); err != nil {
			t.Fatalf("SaveAvatar(%s) failed: %v", outfit, err)
		}
	}

	records, err := c.History.List(context.Background(), pid)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	active := 0
	for _, r := range records {
		if r.IsActive {
			active++
		}
	}
	if len(records) != 3 || active != 1 {
		t.Errorf("records = %d, active = %d; want 3 and 1", len(records), active)
	}
	if records[0].Attributes.Outfit != "outfit_3" || !records[0].IsActive {
		t.Errorf("newest record = %+v, want active outfit_3", records[0])
	}
}

func TestSaveAvatar_InvalidWritesNothing(t *testing.T) {
	c, faulty := newFaultyCore(t)
	ctx := userCtx("u1")
	ptr := newPointer()
	mustCreate(t, c, ctx, ptr, "Kid")
	faulty.Reset()

	bad := roundTripAttrs()
	bad.HairColor = "purple"
	_, err := c.SaveAvatar(ctx, ptr, SaveAvatarInput{Attributes: bad})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Fatalf("err = %v, want INVALID_REQUEST", err)
	}
	if w := faulty.Writes(); w != 0 {
		t.Errorf("writes = %d, want 0", w)
	}
}

func TestSaveAvatar_NoProfileSelected(t *testing.T) {
	c, faulty := newFaultyCore(t)
	ctx := userCtx("u1")

	_, err := c.SaveAvatar(ctx, newPointer(), SaveAvatarInput{Attributes: roundTripAttrs()})
	if !errors.Is(err, errors.ErrNoProfileSelected) {
		t.Fatalf("err = %v, want NO_PROFILE_SELECTED", err)
	}
	_, err = c.SaveAvatar(ctx, nil, SaveAvatarInput{Attributes: roundTripAttrs()})
	if !errors.Is(err, errors.ErrNoProfileSelected) {
		t.Fatalf("nil pointer: err = %v, want NO_PROFILE_SELECTED", err)
	}
	if w := faulty.Writes(); w != 0 {
		t.Errorf("writes = %d, want 0", w)
	}
}

func TestSaveAvatar_PartialCommitFallsBackToDefaults(t *testing.T) {
	c, faulty := newFaultyCore(t)
	ctx := userCtx("u1")
	ptr := newPointer()
	mustCreate(t, c, ctx, ptr, "Kid")

	if _, err := c.SaveAvatar(ctx, ptr, SaveAvatarInput{Attributes: roundTripAttrs()}); err != nil {
		t.Fatalf("first save failed: %v", err)
	}

	faulty.FailNext(storetest.OpInsert, store.Avatars, 1)
	next := roundTripAttrs()
	next.Accessory = stringPtr("accessory_2")
	_, err := c.SaveAvatar(ctx, ptr, SaveAvatarInput{Attributes: next})
	if !errors.Is(err, errors.ErrPartiallyCommitted) {
		t.Fatalf("err = %v, want PARTIALLY_COMMITTED", err)
	}
	if errors.Is(err, errors.ErrStoreUnavailable) {
		t.Error("partial commit must be distinct from a plain store failure")
	}

	out, err := c.GetActiveAvatar(ctx, ptr, GetAvatarInput{})
	if err != nil {
		t.Fatalf("GetActiveAvatar after partial commit: %v", err)
	}
	if !out.IsDefault || out.Attributes != avatar.Default() {
		t.Errorf("got %+v, want default attributes", out)
	}
	if out.Violation == nil || out.Violation.Kind != history.NoneActive {
		t.Errorf("Violation = %+v, want none_active", out.Violation)
	}

	resumed, err := c.SaveAvatar(ctx, ptr, SaveAvatarInput{Attributes: next, Resume: true})
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if resumed.State != swap.Committed {
		t.Errorf("State = %q, want committed", resumed.State)
	}

	out, err = c.GetActiveAvatar(ctx, ptr, GetAvatarInput{})
	if err != nil {
		t.Fatalf("GetActiveAvatar after resume: %v", err)
	}
	if out.IsDefault || out.Attributes.Accessory == nil || *out.Attributes.Accessory != "accessory_2" {
		t.Errorf("got %+v, want resumed avatar", out)
	}
	if out.Violation != nil {
		t.Errorf("Violation = %+v after resume", out.Violation)
	}
}

func TestSaveAvatar_ResumeOnHealthyProfileKeepsOneActive(t *testing.T) {
	cores := map[string]*Core{
		"memory_two_step": New(store.NewMemory(), Options{}),
		"sqlite_atomic":   newSQLiteCore(t),
	}
	for name, c := range cores {
		t.Run(name, func(t *testing.T) {
			ctx := userCtx("u1")
			ptr := newPointer()
			mustCreate(t, c, ctx, ptr, "Kid")

			if _, err := c.SaveAvatar(ctx, ptr, SaveAvatarInput{Attributes: roundTripAttrs()}); err != nil {
				t.Fatalf("first save failed: %v", err)
			}

			next := roundTripAttrs()
			next.Face = "face_5"
			out, err := c.SaveAvatar(ctx, ptr, SaveAvatarInput{Attributes: next, Resume: true})
			if err != nil {
				t.Fatalf("resume failed: %v", err)
			}
			if out.State != swap.Committed || out.Deactivated != 1 {
				t.Errorf("outcome = %+v, want committed with one deactivated", out.Outcome)
			}

			got, err := c.GetActiveAvatar(ctx, ptr, GetAvatarInput{})
			if err != nil {
				t.Fatalf("GetActiveAvatar failed: %v", err)
			}
			if got.Violation != nil {
				t.Fatalf("Violation = %+v after resume on a healthy profile", got.Violation)
			}
			if got.Attributes.Face != "face_5" {
				t.Errorf("Face = %q, want face_5", got.Attributes.Face)
			}
		})
	}
}

func TestSaveAvatar_DeactivateFailureIsRetryable(t *testing.T) {
	c, faulty := newFaultyCore(t)
	ctx := userCtx("u1")
	ptr := newPointer()
	mustCreate(t, c, ctx, ptr, "Kid")

	first, err := c.SaveAvatar(ctx, ptr, SaveAvatarInput{Attributes: roundTripAttrs()})
	if err != nil {
		t.Fatalf("first save failed: %v", err)
	}

	faulty.FailNext(storetest.OpUpdate, store.Avatars, 1)
	next := roundTripAttrs()
	next.Face = "face_4"
	_, err = c.SaveAvatar(ctx, ptr, SaveAvatarInput{Attributes: next})
	if !errors.Is(err, errors.ErrStoreUnavailable) || !errors.IsRetryable(err) {
		t.Fatalf("err = %v, want retryable STORE_UNAVAILABLE", err)
	}

	out, err := c.GetActiveAvatar(ctx, ptr, GetAvatarInput{})
	if err != nil {
		t.Fatalf("GetActiveAvatar failed: %v", err)
	}
	if out.RecordID != first.RecordID {
		t.Errorf("RecordID = %q, want previous %q", out.RecordID, first.RecordID)
	}
}

func TestGetActiveAvatar_StoreErrorIsNotEmpty(t *testing.T) {
	c, faulty := newFaultyCore(t)
	ctx := userCtx("u1")
	ptr := newPointer()
	mustCreate(t, c, ctx, ptr, "Kid")

	faulty.FailNext(storetest.OpFind, store.Avatars, 1)
	_, err := c.GetActiveAvatar(ctx, ptr, GetAvatarInput{})
	if !errors.Is(err, errors.ErrStoreUnavailable) {
		t.Fatalf("err = %v, want STORE_UNAVAILABLE", err)
	}
}

func TestDeleteProfile_ClearsPointer(t *testing.T) {
	c, _ := newFaultyCore(t)
	ctx := userCtx("u1")
	ptr := newPointer()
	pid := mustCreate(t, c, ctx, ptr, "Kid")

	cur, err := ptr.Current(ctx)
	if err != nil || cur != pid {
		t.Fatalf("Current = %q, %v; want %q", cur, err, pid)
	}

	out, err := c.DeleteProfile(ctx, ptr, DeleteProfileInput{ProfileID: pid})
	if err != nil {
		t.Fatalf("DeleteProfile failed: %v", err)
	}
	if !out.Deleted {
		t.Error("Deleted = false")
	}

	cur, err = ptr.Current(ctx)
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if cur != "" {
		t.Errorf("Current = %q after delete, want absent", cur)
	}
}

func TestDeletedProfile_NeverResolvesAvatar(t *testing.T) {
	c, _ := newFaultyCore(t)
	ctx := userCtx("u1")
	ptr := newPointer()
	pid := mustCreate(t, c, ctx, ptr, "Kid")

	if _, err := c.SaveAvatar(ctx, ptr, SaveAvatarInput{Attributes: roundTripAttrs()}); err != nil {
		t.Fatalf("SaveAvatar failed: %v", err)
	}
	// A second session still pointing at the profile.
	other := newPointer()
	if err := other.Select(ctx, pid); err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	if _, err := c.DeleteProfile(ctx, ptr, DeleteProfileInput{ProfileID: pid}); err != nil {
		t.Fatalf("DeleteProfile failed: %v", err)
	}

	_, err := c.GetActiveAvatar(ctx, other, GetAvatarInput{})
	if !errors.Is(err, errors.ErrNoProfileSelected) {
		t.Fatalf("stale pointer: err = %v, want NO_PROFILE_SELECTED", err)
	}
	cur, _ := other.Current(ctx)
	if cur != "" {
		t.Errorf("stale pointer not cleared: %q", cur)
	}

	_, err = c.GetActiveAvatar(ctx, nil, GetAvatarInput{ProfileID: pid})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("explicit id: err = %v, want NOT_FOUND", err)
	}
}

func TestSelectProfile(t *testing.T) {
	c, _ := newFaultyCore(t)
	ctx := userCtx("u1")
	ptr := newPointer()

	a := mustCreate(t, c, ctx, nil, "A")
	b := mustCreate(t, c, ctx, nil, "B")

	cur, err := c.CurrentProfile(ctx, ptr)
	if err != nil {
		t.Fatalf("CurrentProfile failed: %v", err)
	}
	if cur.Selected {
		t.Error("Selected = true before any selection")
	}

	if _, err := c.SelectProfile(ctx, ptr, SelectProfileInput{ProfileID: b}); err != nil {
		t.Fatalf("SelectProfile failed: %v", err)
	}
	cur, err = c.CurrentProfile(ctx, ptr)
	if err != nil {
		t.Fatalf("CurrentProfile failed: %v", err)
	}
	if !cur.Selected || cur.Profile.ID != b {
		t.Errorf("current = %+v, want %s", cur, b)
	}

	_, err = c.SelectProfile(ctx, ptr, SelectProfileInput{ProfileID: "missing"})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}
	cur, _ = c.CurrentProfile(ctx, ptr)
	if cur.Profile == nil || cur.Profile.ID != b {
		t.Error("failed select must leave the pointer unchanged")
	}

	// Another user's profile is invisible.
	_, err = c.SelectProfile(userCtx("u2"), ptr, SelectProfileInput{ProfileID: a})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("cross-user: err = %v, want NOT_FOUND", err)
	}
}

func TestCurrentProfile_ClearsStalePointer(t *testing.T) {
	c, _ := newFaultyCore(t)
	ctx := userCtx("u1")
	ptr := newPointer()
	if err := ptr.Select(ctx, "gone"); err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	cur, err := c.CurrentProfile(ctx, ptr)
	if err != nil {
		t.Fatalf("CurrentProfile failed: %v", err)
	}
	if cur.Selected {
		t.Error("stale pointer reported as selected")
	}
	raw, _ := ptr.Current(ctx)
	if raw != "" {
		t.Errorf("pointer = %q, want cleared", raw)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	c, _ := newFaultyCore(t)
	ctx := userCtx("u1")
	tab1, tab2 := newPointer(), newPointer()

	a := mustCreate(t, c, ctx, tab1, "A")
	b := mustCreate(t, c, ctx, tab2, "B")

	skin := roundTripAttrs()
	skin.SkinTone = "skin_4"
	if _, err := c.SaveAvatar(ctx, tab1, SaveAvatarInput{Attributes: skin}); err != nil {
		t.Fatalf("save tab1: %v", err)
	}

	out1, err := c.GetActiveAvatar(ctx, tab1, GetAvatarInput{})
	if err != nil {
		t.Fatalf("tab1: %v", err)
	}
	out2, err := c.GetActiveAvatar(ctx, tab2, GetAvatarInput{})
	if err != nil {
		t.Fatalf("tab2: %v", err)
	}
	if out1.ProfileID != a || out2.ProfileID != b {
		t.Errorf("profiles = %s/%s, want %s/%s", out1.ProfileID, out2.ProfileID, a, b)
	}
	if out1.Attributes.SkinTone != "skin_4" || !out2.IsDefault {
		t.Errorf("tab1 = %+v, tab2 = %+v", out1.Attributes, out2)
	}
}

func TestAvatarHistory_Pagination(t *testing.T) {
	c, _ := newFaultyCore(t)
	ctx := userCtx("u1")
	ptr := newPointer()
	mustCreate(t, c, ctx, ptr, "Kid")

	for _, face := range []string{"face_1", "face_2", "face_3"} {
		a := roundTripAttrs()
		a.Face = face
		if _, err := c.SaveAvatar(ctx, ptr, SaveAvatarInput{Attributes: a}); err != nil {
			t.Fatalf("SaveAvatar failed: %v", err)
		}
	}

	out, err := c.AvatarHistory(ctx, ptr, HistoryInput{Limit: 2})
	if err != nil {
		t.Fatalf("AvatarHistory failed: %v", err)
	}
	if len(out.Records) != 2 || !out.Pagination.HasMore || out.Pagination.Total != 3 {
		t.Errorf("page = %d records, pagination %+v", len(out.Records), out.Pagination)
	}
	if out.Records[0].Attributes.Face != "face_3" || !out.Records[0].IsActive {
		t.Errorf("first record = %+v, want active face_3", out.Records[0])
	}

	out, err = c.AvatarHistory(ctx, ptr, HistoryInput{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("AvatarHistory failed: %v", err)
	}
	if len(out.Records) != 1 || out.Pagination.HasMore {
		t.Errorf("last page = %d records, pagination %+v", len(out.Records), out.Pagination)
	}

	out, err = c.AvatarHistory(ctx, ptr, HistoryInput{Offset: 10})
	if err != nil {
		t.Fatalf("AvatarHistory failed: %v", err)
	}
	if out.Records == nil || len(out.Records) != 0 {
		t.Errorf("past the end = %v, want empty slice", out.Records)
	}
	if out.Pagination.Limit != DefaultHistoryLimit {
		t.Errorf("Limit = %d, want default", out.Pagination.Limit)
	}

	_, err = c.AvatarHistory(ctx, ptr, HistoryInput{Offset: -1})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("negative offset: err = %v", err)
	}
}

func TestRepairAvatar(t *testing.T) {
	mem := store.NewMemory()
	c := New(mem, Options{})
	ctx := userCtx("u1")
	ptr := newPointer()
	pid := mustCreate(t, c, ctx, ptr, "Kid")

	// Two records left active by interleaved swaps.
	for _, ts := range []int64{1, 2} {
		row := history.RowFromAttributes(pid, roundTripAttrs(), true)
		row["created_at"] = ts
		if _, err := mem.Insert(context.Background(), store.Avatars, row); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := c.GetActiveAvatar(ctx, ptr, GetAvatarInput{})
	if err != nil {
		t.Fatalf("GetActiveAvatar failed: %v", err)
	}
	if got.Violation == nil || got.Violation.Kind != history.MultipleActive {
		t.Fatalf("Violation = %+v, want multiple_active", got.Violation)
	}

	out, err := c.RepairAvatar(ctx, ptr, RepairInput{})
	if err != nil {
		t.Fatalf("RepairAvatar failed: %v", err)
	}
	if !out.Repaired || out.ActiveID != got.RecordID || len(out.Deactivated) != 1 {
		t.Errorf("repair = %+v", out)
	}

	again, err := c.RepairAvatar(ctx, ptr, RepairInput{})
	if err != nil {
		t.Fatalf("RepairAvatar failed: %v", err)
	}
	if again.Repaired {
		t.Error("second repair should find nothing to do")
	}
}

func TestCatalog(t *testing.T) {
	c := New(store.NewMemory(), Options{})
	if _, err := c.Catalog(context.Background()); !errors.Is(err, errors.ErrUnauthenticated) {
		t.Fatalf("err = %v, want UNAUTHENTICATED", err)
	}

	out, err := c.Catalog(userCtx("u1"))
	if err != nil {
		t.Fatalf("Catalog failed: %v", err)
	}
	if len(out.Catalogs) != 6 {
		t.Errorf("catalogs = %d, want 6", len(out.Catalogs))
	}
	if out.Default != avatar.Default() {
		t.Errorf("Default = %+v", out.Default)
	}
	if len(out.AgeBands) != 3 {
		t.Errorf("age bands = %v", out.AgeBands)
	}
}
