package db_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/d9705996/marknote/internal/config"
	"github.com/d9705996/marknote/internal/db"
	"github.com/d9705996/marknote/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SQLite(t *testing.T) {
	cfg := &config.DBConfig{Driver: "sqlite", File: filepath.Join(t.TempDir(), "test.db")}
	gormDB, pool, err := db.New(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, pool)
	t.Cleanup(func() { _ = db.Close(gormDB) })

	require.NoError(t, db.NewPinger(gormDB).Ping(context.Background()))
}

func TestOpenSQLite_ActiveTitleIndex(t *testing.T) {
	gormDB, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gormDB) })

	u := &model.User{Email: "a@example.com", Username: "alice"}
	require.NoError(t, gormDB.Create(u).Error)

	first := &model.File{Title: "Notes", UserID: u.ID}
	require.NoError(t, gormDB.Create(first).Error)

	err = gormDB.Create(&model.File{Title: "Notes", UserID: u.ID}).Error
	require.Error(t, err)

	// Trashed rows sit outside the partial index.
	require.NoError(t, gormDB.Model(first).Update("deleted_at", time.Now()).Error)
	require.NoError(t, gormDB.Create(&model.File{Title: "Notes", UserID: u.ID}).Error)
}

func TestOpenSQLite_GroupNameIndexIgnoresCase(t *testing.T) {
	gormDB, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gormDB) })

	require.NoError(t, gormDB.Create(&model.Group{Name: "Work", UserID: "u1"}).Error)
	err = gormDB.Create(&model.Group{Name: "WORK", UserID: "u1"}).Error
	require.Error(t, err)
	require.NoError(t, gormDB.Create(&model.Group{Name: "WORK", UserID: "u2"}).Error)
}

func TestOpenSQLite_GroupNameIndexFoldsNonASCII(t *testing.T) {
	gormDB, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gormDB) })

	require.NoError(t, gormDB.Create(&model.Group{Name: "Café", UserID: "u1"}).Error)
	err = gormDB.Create(&model.Group{Name: "CAFÉ", UserID: "u1"}).Error
	require.Error(t, err)
}

func TestOpenSQLite_BackfillsFoldColumns(t *testing.T) {
	file := filepath.Join(t.TempDir(), "test.db")
	gormDB, err := db.OpenSQLite(file)
	require.NoError(t, err)

	// Rows written without the hooks, as an older binary would have.
	now := time.Now().UTC()
	require.NoError(t, gormDB.Exec(
		`INSERT INTO markdown_files (id, title, content, user_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		"f1", "ÉTÉ", "Über", "u1", now, now).Error)
	require.NoError(t, gormDB.Exec(
		`INSERT INTO note_groups (id, name, user_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		"g1", "Ärger", "u1", now, now).Error)
	require.NoError(t, db.Close(gormDB))

	gormDB, err = db.OpenSQLite(file)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gormDB) })

	var f model.File
	require.NoError(t, gormDB.First(&f, "id = ?", "f1").Error)
	assert.Equal(t, "été", f.TitleFold)
	assert.Equal(t, "über", f.ContentFold)

	var g model.Group
	require.NoError(t, gormDB.First(&g, "id = ?", "g1").Error)
	assert.Equal(t, "ärger", g.NameFold)
}
