package group_test

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/d9705996/marknote/internal/apperr"
	"github.com/d9705996/marknote/internal/db"
	"github.com/d9705996/marknote/internal/group"
	"github.com/d9705996/marknote/internal/model"
	"github.com/d9705996/marknote/internal/patch"
	"github.com/d9705996/marknote/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*group.Service, *store.Files) {
	t.Helper()
	gormDB, err := db.OpenSQLite(filepath.Join(t.TempDir(), "group.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gormDB) })
	log := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	return group.NewService(store.NewGroups(gormDB), log), store.NewFiles(gormDB)
}

func TestCreate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	g, err := svc.Create(ctx, "alice", "  Work ")
	require.NoError(t, err)
	assert.Equal(t, "Work", g.Name)

	_, err = svc.Create(ctx, "alice", "")
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	_, err = svc.Create(ctx, "alice", "WORK")
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))

	_, err = svc.Create(ctx, "bob", "Work")
	require.NoError(t, err)
}

func TestCreate_NameReusableAfterDelete(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	g, err := svc.Create(ctx, "alice", "Work")
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "alice", g.ID))

	_, err = svc.Create(ctx, "alice", "work")
	require.NoError(t, err)
}

func TestGetAndList(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	for _, name := range []string{"a", "b", "c"} {
		_, err := svc.Create(ctx, "alice", name)
		require.NoError(t, err)
	}

	res, err := svc.List(ctx, "alice", 1, 2)
	require.NoError(t, err)
	assert.Len(t, res.Data, 2)
	assert.EqualValues(t, 3, res.Pagination.Total)
	assert.Equal(t, 2, res.Pagination.TotalPages)
	assert.True(t, res.Pagination.HasNextPage)

	_, err = svc.Get(ctx, "bob", res.Data[0].ID)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestUpdate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	work, err := svc.Create(ctx, "alice", "Work")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "alice", "Home")
	require.NoError(t, err)

	got, err := svc.Update(ctx, "alice", work.ID, group.Patch{Name: patch.Of("work")})
	require.NoError(t, err, "renaming to a case variant of its own name")
	assert.Equal(t, "work", got.Name)

	_, err = svc.Update(ctx, "alice", work.ID, group.Patch{Name: patch.Of("home")})
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))

	_, err = svc.Update(ctx, "alice", work.ID, group.Patch{Name: patch.Of("  ")})
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	_, err = svc.Update(ctx, "alice", work.ID, group.Patch{Name: patch.Null[string]()})
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	_, err = svc.Update(ctx, "bob", work.ID, group.Patch{Name: patch.Of("Mine")})
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestDelete_DetachesFiles(t *testing.T) {
	svc, files := newService(t)
	ctx := context.Background()
	g, err := svc.Create(ctx, "alice", "Work")
	require.NoError(t, err)
	f := &model.File{Title: "plan", UserID: "alice", GroupID: &g.ID}
	require.NoError(t, files.Create(ctx, f))

	assert.Equal(t, apperr.NotFound, apperr.KindOf(svc.Delete(ctx, "bob", g.ID)))
	require.NoError(t, svc.Delete(ctx, "alice", g.ID))
	assert.Equal(t, apperr.NotFound, apperr.KindOf(svc.Delete(ctx, "alice", g.ID)))

	_, err = svc.Get(ctx, "alice", g.ID)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	after, err := files.Get(ctx, "alice", f.ID, store.Active)
	require.NoError(t, err)
	assert.Nil(t, after.GroupID)
}
