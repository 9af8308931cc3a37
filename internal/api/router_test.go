package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/d9705996/marknote/internal/account"
	"github.com/d9705996/marknote/internal/api"
	"github.com/d9705996/marknote/internal/api/handler"
	"github.com/d9705996/marknote/internal/auth"
	"github.com/d9705996/marknote/internal/db"
	"github.com/d9705996/marknote/internal/group"
	"github.com/d9705996/marknote/internal/health"
	"github.com/d9705996/marknote/internal/note"
	"github.com/d9705996/marknote/internal/oauth"
	"github.com/d9705996/marknote/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const secret = "test-secret-at-least-32-bytes!!!"

type client struct {
	t     *testing.T
	h     http.Handler
	token string
}

func newClient(t *testing.T) *client {
	t.Helper()
	gormDB, err := db.OpenSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gormDB) })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	groups := store.NewGroups(gormDB)
	accounts := account.NewService(store.NewUsers(gormDB), store.NewAccounts(gormDB), log, account.WithHashCost(bcrypt.MinCost))
	tokens := handler.TokenConfig{Secret: secret, AccessTTL: 15 * time.Minute}

	mux := http.NewServeMux()
	api.RegisterRoutes(mux, api.Handlers{
		Health: health.New(db.NewPinger(gormDB), "sqlite"),
		Auth:   handler.NewAuthHandler(accounts, auth.NewRefreshStore(gormDB, time.Hour), tokens, log),
		OAuth:  handler.NewOAuthHandler(oauth.Registry{}, accounts, tokens, "http://client.test", log),
		Files:  handler.NewFileHandler(note.NewService(store.NewFiles(gormDB), groups, log), log),
		Groups: handler.NewGroupHandler(group.NewService(groups, log), log),
	}, secret)
	return &client{t: t, h: mux}
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	w := httptest.NewRecorder()
	c.h.ServeHTTP(w, req)
	return w
}

type resource struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes"`
}

type document struct {
	Data       json.RawMessage `json:"data"`
	Meta       map[string]any  `json:"meta"`
	Pagination map[string]any  `json:"pagination"`
	Errors     []struct {
		Code string         `json:"code"`
		Meta map[string]any `json:"meta"`
	} `json:"errors"`
}

func decodeDoc(t *testing.T, w *httptest.ResponseRecorder) document {
	t.Helper()
	var doc document
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc), w.Body.String())
	return doc
}

func one(t *testing.T, w *httptest.ResponseRecorder) resource {
	t.Helper()
	var res resource
	require.NoError(t, json.Unmarshal(decodeDoc(t, w).Data, &res))
	return res
}

func many(t *testing.T, w *httptest.ResponseRecorder) []resource {
	t.Helper()
	var res []resource
	require.NoError(t, json.Unmarshal(decodeDoc(t, w).Data, &res))
	return res
}

func (c *client) signUp(email, username string) {
	c.t.Helper()
	w := c.do(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email": email, "username": username, "password": "secret1",
	})
	require.Equal(c.t, http.StatusCreated, w.Code, w.Body.String())
	tok, ok := one(c.t, w).Attributes["access_token"].(string)
	require.True(c.t, ok)
	c.token = tok
}

func (c *client) createFile(title string, groupID any) resource {
	c.t.Helper()
	w := c.do(http.MethodPost, "/api/v1/files", map[string]any{"title": title, "content": "# " + title, "groupId": groupID})
	require.Equal(c.t, http.StatusCreated, w.Code, w.Body.String())
	return one(c.t, w)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	c := newClient(t)
	for _, path := range []string{"/api/v1/files", "/api/v1/trash", "/api/v1/groups", "/api/v1/auth/profile"} {
		w := c.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestHealthAndUnknownRoute(t *testing.T) {
	c := newClient(t)
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/v1/health", nil).Code)
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/v1/ready", nil).Code)

	w := c.do(http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decodeDoc(t, w).Errors[0].Code)
}

func TestFileLifecycle(t *testing.T) {
	c := newClient(t)
	c.signUp("alice@example.com", "alice")

	f := c.createFile("Plan", nil)
	assert.Equal(t, "files", f.Type)
	assert.Equal(t, "Plan", f.Attributes["title"])

	w := c.do(http.MethodPost, "/api/v1/files", map[string]string{"title": "Plan"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = c.do(http.MethodGet, "/api/v1/files?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	doc := decodeDoc(t, w)
	assert.EqualValues(t, 1, doc.Pagination["total"])
	assert.EqualValues(t, 5, doc.Pagination["limit"])
	assert.Equal(t, false, doc.Pagination["has_next_page"])

	w = c.do(http.MethodPatch, "/api/v1/files/"+f.ID, map[string]string{"content": "updated"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "updated", one(t, w).Attributes["content"])

	assert.Equal(t, http.StatusNoContent, c.do(http.MethodDelete, "/api/v1/files/"+f.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/api/v1/files/"+f.ID, nil).Code)

	w = c.do(http.MethodGet, "/api/v1/files/count", nil)
	assert.EqualValues(t, 0, decodeDoc(t, w).Meta["count"])

	trash := many(t, c.do(http.MethodGet, "/api/v1/trash", nil))
	require.Len(t, trash, 1)
	assert.NotNil(t, trash[0].Attributes["deleted_at"])

	// A new active file takes the title; restoring the trashed one conflicts.
	c.createFile("Plan", nil)
	w = c.do(http.MethodPost, "/api/v1/trash/restore", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, []any{"Plan"}, decodeDoc(t, w).Errors[0].Meta["conflicts"])

	assert.Equal(t, http.StatusNoContent, c.do(http.MethodDelete, "/api/v1/trash/"+f.ID, nil).Code)
	assert.Empty(t, many(t, c.do(http.MethodGet, "/api/v1/trash", nil)))
}

func TestRestoreAndEmptyTrash(t *testing.T) {
	c := newClient(t)
	c.signUp("alice@example.com", "alice")
	a := c.createFile("a", nil)
	b := c.createFile("b", nil)
	d := c.createFile("d", nil)

	w := c.do(http.MethodPost, "/api/v1/files/bulk-delete", map[string]any{"ids": []string{a.ID, b.ID, d.ID}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, decodeDoc(t, w).Meta["deleted"])

	w = c.do(http.MethodPost, "/api/v1/trash/"+a.ID+"/restore", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, one(t, w).Attributes["deleted_at"])

	w = c.do(http.MethodDelete, "/api/v1/trash", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decodeDoc(t, w).Meta["deleted"])

	assert.Len(t, many(t, c.do(http.MethodGet, "/api/v1/files", nil)), 1)
}

func TestSearchAndOwnerIsolation(t *testing.T) {
	c := newClient(t)
	c.signUp("alice@example.com", "alice")
	f := c.createFile("Groceries", nil)
	c.createFile("Work log", nil)

	hits := many(t, c.do(http.MethodGet, "/api/v1/files?search=grocer", nil))
	require.Len(t, hits, 1)
	assert.Equal(t, f.ID, hits[0].ID)

	c.signUp("bob@example.com", "bob")
	assert.Empty(t, many(t, c.do(http.MethodGet, "/api/v1/files", nil)))
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/api/v1/files/"+f.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodDelete, "/api/v1/files/"+f.ID, nil).Code)
}

func TestGroups(t *testing.T) {
	c := newClient(t)
	c.signUp("alice@example.com", "alice")

	w := c.do(http.MethodPost, "/api/v1/groups", map[string]any{"data": map[string]any{"attributes": map[string]string{"name": "Work"}}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	g := one(t, w)
	assert.Equal(t, "Work", g.Attributes["name"])

	assert.Equal(t, http.StatusConflict, c.do(http.MethodPost, "/api/v1/groups", map[string]string{"name": "work"}).Code)

	f := c.createFile("Standup", g.ID)
	assert.Equal(t, g.ID, f.Attributes["group_id"])

	grouped := many(t, c.do(http.MethodGet, "/api/v1/files?group_id="+g.ID, nil))
	assert.Len(t, grouped, 1)
	c.createFile("Loose", nil)
	assert.Len(t, many(t, c.do(http.MethodGet, "/api/v1/files?ungrouped=true", nil)), 1)

	w = c.do(http.MethodGet, "/api/v1/groups/"+g.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, one(t, w).Attributes["file_count"])

	w = c.do(http.MethodPatch, "/api/v1/groups/"+g.ID, map[string]string{"name": "Office"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Office", one(t, w).Attributes["name"])

	assert.Equal(t, http.StatusNoContent, c.do(http.MethodDelete, "/api/v1/groups/"+g.ID, nil).Code)
	w = c.do(http.MethodGet, "/api/v1/files/"+f.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, one(t, w).Attributes["group_id"])
}

func TestProfileAndPassword(t *testing.T) {
	c := newClient(t)
	c.signUp("alice@example.com", "alice")

	w := c.do(http.MethodGet, "/api/v1/auth/profile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, one(t, w).Attributes["has_password"])

	w = c.do(http.MethodPut, "/api/v1/auth/password", map[string]string{"currentPassword": "wrong-pass", "newPassword": "another1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = c.do(http.MethodPut, "/api/v1/auth/password", map[string]string{"currentPassword": "secret1", "newPassword": "another1"})
	assert.Equal(t, http.StatusNoContent, w.Code)

	c.token = ""
	w = c.do(http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "alice@example.com", "password": "another1"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUnknownOAuthProvider(t *testing.T) {
	c := newClient(t)
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/api/v1/auth/gitlab", nil).Code)

	w := c.do(http.MethodGet, "/api/v1/auth/gitlab/callback?code=x", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "http://client.test/login?error=unknown_provider", w.Header().Get("Location"))
}

func TestRefreshLogoutAndDeleteAccount(t *testing.T) {
	c := newClient(t)
	w := c.do(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email": "alice@example.com", "username": "alice", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	refresh, ok := one(t, w).Attributes["refresh_token"].(string)
	require.True(t, ok)

	w = c.do(http.MethodPost, "/api/v1/auth/refresh", map[string]string{"refresh_token": refresh})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rotated := one(t, w).Attributes
	c.token = rotated["access_token"].(string)

	// The old refresh token was consumed by rotation.
	w = c.do(http.MethodPost, "/api/v1/auth/refresh", map[string]string{"refresh_token": refresh})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = c.do(http.MethodPost, "/api/v1/auth/logout", map[string]any{"refresh_token": rotated["refresh_token"]})
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = c.do(http.MethodPost, "/api/v1/auth/refresh", map[string]any{"refresh_token": rotated["refresh_token"]})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.Equal(t, http.StatusNoContent, c.do(http.MethodDelete, "/api/v1/auth/account", nil).Code)
	c.token = ""
	w = c.do(http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "alice@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
