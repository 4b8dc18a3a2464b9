package directory

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/willow/internal/db"
	"github.com/hpungsan/willow/internal/errors"
	"github.com/hpungsan/willow/internal/profile"
	"github.com/hpungsan/willow/internal/session"
	"github.com/hpungsan/willow/internal/store"
	"github.com/hpungsan/willow/internal/store/storetest"
)

func TestCreate(t *testing.T) {
	ctx := context.Background()
	d := New(store.NewMemory(), nil)

	p, err := d.Create(ctx, "u1", "  Ada   Lovelace ", "7-9")
	require.NoError(t, err)
	require.NotEmpty(t, p.ID)
	require.Equal(t, "u1", p.UserID)
	require.Equal(t, "Ada Lovelace", p.DisplayName)
	require.Equal(t, profile.AgeBand7to9, p.AgeBand)
	require.NotZero(t, p.CreatedAt)

	got, err := d.Get(ctx, "u1", p.ID)
	require.NoError(t, err)
	require.Equal(t, *p, *got)
}

func TestCreate_DefaultAgeBand(t *testing.T) {
	d := New(store.NewMemory(), nil)
	p, err := d.Create(context.Background(), "u1", "Kid", "")
	require.NoError(t, err)
	require.Equal(t, profile.DefaultAgeBand, p.AgeBand)
}

func TestCreate_RejectsWithoutWriting(t *testing.T) {
	ctx := context.Background()
	faulty := storetest.NewFaulty(store.NewMemory())
	d := New(faulty, nil)

	tests := []struct {
		name    string
		user    string
		display string
		band    string
		code    errors.ErrorCode
	}{
		{"empty name", "u1", "", "4–6", errors.ErrInvalidRequest},
		{"whitespace name", "u1", " \t\n ", "4–6", errors.ErrInvalidRequest},
		{"unknown band", "u1", "Kid", "13–15", errors.ErrInvalidRequest},
		{"no user", "", "Kid", "4–6", errors.ErrUnauthenticated},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := d.Create(ctx, tc.user, tc.display, tc.band)
			require.True(t, errors.Is(err, tc.code), "got %v", err)
		})
	}
	require.Empty(t, faulty.Calls(), "validation happens before any store call")
}

func TestCreate_StoreFailure(t *testing.T) {
	faulty := storetest.NewFaulty(store.NewMemory())
	d := New(faulty, nil)
	faulty.FailNext(storetest.OpInsert, store.Profiles, 1)

	_, err := d.Create(context.Background(), "u1", "Kid", "4–6")
	require.True(t, errors.Is(err, errors.ErrStoreUnavailable))
	require.True(t, errors.IsRetryable(err))
}

func TestList_ScopedToUser(t *testing.T) {
	ctx := context.Background()
	d := New(store.NewMemory(), nil)

	a, err := d.Create(ctx, "u1", "A", "")
	require.NoError(t, err)
	b, err := d.Create(ctx, "u1", "B", "")
	require.NoError(t, err)
	_, err = d.Create(ctx, "u2", "C", "")
	require.NoError(t, err)

	list, err := d.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, a.ID, list[0].ID)
	require.Equal(t, b.ID, list[1].ID)

	again, err := d.List(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, list, again, "stable for an unchanged store")

	empty, err := d.List(ctx, "nobody")
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestGet_OtherUsersProfileNotFound(t *testing.T) {
	ctx := context.Background()
	d := New(store.NewMemory(), nil)

	p, err := d.Create(ctx, "u1", "A", "")
	require.NoError(t, err)

	_, err = d.Get(ctx, "u2", p.ID)
	require.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = d.Get(ctx, "u1", "missing")
	require.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestDelete_ClearsSessionPointer(t *testing.T) {
	ctx := context.Background()
	d := New(store.NewMemory(), nil)

	p, err := d.Create(ctx, "u1", "A", "")
	require.NoError(t, err)

	ptr := session.NewPointer(session.NewMemoryCache())
	require.NoError(t, ptr.Select(ctx, p.ID))

	require.NoError(t, d.Delete(ctx, "u1", p.ID, ptr))

	cur, err := ptr.Current(ctx)
	require.NoError(t, err)
	require.Empty(t, cur, "pointer cleared before delete returned")

	_, err = d.Get(ctx, "u1", p.ID)
	require.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestDelete_KeepsOtherPointers(t *testing.T) {
	ctx := context.Background()
	d := New(store.NewMemory(), nil)

	a, err := d.Create(ctx, "u1", "A", "")
	require.NoError(t, err)
	b, err := d.Create(ctx, "u1", "B", "")
	require.NoError(t, err)

	ptr := session.NewPointer(session.NewMemoryCache())
	require.NoError(t, ptr.Select(ctx, b.ID))
	require.NoError(t, d.Delete(ctx, "u1", a.ID, ptr))

	cur, err := ptr.Current(ctx)
	require.NoError(t, err)
	require.Equal(t, b.ID, cur)
}

func TestDelete_NotOwned(t *testing.T) {
	ctx := context.Background()
	d := New(store.NewMemory(), nil)

	p, err := d.Create(ctx, "u1", "A", "")
	require.NoError(t, err)

	called := false
	obs := ObserverFunc(func(context.Context, string) error {
		called = true
		return nil
	})
	err = d.Delete(ctx, "u2", p.ID, obs)
	require.True(t, errors.Is(err, errors.ErrNotFound))
	require.False(t, called)

	_, err = d.Get(ctx, "u1", p.ID)
	require.NoError(t, err, "another user's delete is a no-op")
}

func TestDelete_ObserverFailure(t *testing.T) {
	ctx := context.Background()
	d := New(store.NewMemory(), nil)

	p, err := d.Create(ctx, "u1", "A", "")
	require.NoError(t, err)

	boom := stderrors.New("cache down")
	err = d.Delete(ctx, "u1", p.ID, ObserverFunc(func(context.Context, string) error { return boom }))
	require.True(t, errors.Is(err, errors.ErrStoreUnavailable))
	require.ErrorIs(t, err, boom)
}

func TestDirectory_SQLite(t *testing.T) {
	ctx := context.Background()
	sqlDB, err := db.Init(t.TempDir())
	require.NoError(t, err)
	defer sqlDB.Close()

	d := New(db.NewStore(sqlDB), nil)
	p, err := d.Create(ctx, "u1", "Kid", "10–12")
	require.NoError(t, err)

	list, err := d.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, *p, list[0])

	require.NoError(t, d.Delete(ctx, "u1", p.ID))
	list, err = d.List(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, list)
}
