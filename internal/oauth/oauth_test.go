package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/d9705996/marknote/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func fakeProviderServer(t *testing.T, routes map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-123",
			"refresh_token": "refresh-456",
			"token_type":    "bearer",
		})
	})
	for path, body := range routes {
		mux.HandleFunc("GET "+path, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer access-123", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(body)
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testEndpoint(srv *httptest.Server) oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   srv.URL + "/authorize",
		TokenURL:  srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

func TestNewRegistry_OnlyConfiguredProviders(t *testing.T) {
	r := NewRegistry(config.OAuthConfig{GitHub: config.OAuthProvider{ClientID: "gh"}})
	_, ok := r.Get(Google)
	assert.False(t, ok)
	p, ok := r.Get(GitHub)
	require.True(t, ok)
	assert.Equal(t, GitHub, p.Name())
}

func TestAuthCodeURL_CarriesState(t *testing.T) {
	g := NewGoogle(config.OAuthProvider{ClientID: "cid", RedirectURI: "http://localhost/cb"})
	u := g.AuthCodeURL("signed-state")
	assert.Contains(t, u, "state=signed-state")
	assert.Contains(t, u, "client_id=cid")
	assert.True(t, strings.HasPrefix(u, "https://accounts.google.com/"))
}

func TestGoogleExchange(t *testing.T) {
	srv := fakeProviderServer(t, map[string]any{
		"/userinfo": map[string]string{
			"id": "g-1", "email": "ann@example.com", "name": "Ann Lee", "picture": "https://img/ann.png",
		},
	})
	g := NewGoogle(config.OAuthProvider{ClientID: "cid", ClientSecret: "secret"})
	g.config.Endpoint = testEndpoint(srv)
	g.userInfoURL = srv.URL + "/userinfo"

	p, err := g.Exchange(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, &Profile{
		Provider:     Google,
		ProviderID:   "g-1",
		Email:        "ann@example.com",
		Name:         "Ann Lee",
		AvatarURL:    "https://img/ann.png",
		AccessToken:  "access-123",
		RefreshToken: "refresh-456",
	}, p)
}

func TestGitHubExchange_FallsBackToEmailList(t *testing.T) {
	srv := fakeProviderServer(t, map[string]any{
		"/user": map[string]any{"id": 42, "login": "octo", "name": "Octo Cat", "email": nil},
		"/user/emails": []map[string]any{
			{"email": "old@example.com", "primary": false, "verified": true},
			{"email": "main@example.com", "primary": true, "verified": true},
		},
	})
	g := NewGitHub(config.OAuthProvider{ClientID: "cid", ClientSecret: "secret"})
	g.config.Endpoint = testEndpoint(srv)
	g.apiBase = srv.URL

	p, err := g.Exchange(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "42", p.ProviderID)
	assert.Equal(t, "octo", p.Login)
	assert.Equal(t, "main@example.com", p.Email)
}

func TestPickEmail(t *testing.T) {
	tests := []struct {
		name   string
		emails []githubEmail
		want   string
	}{
		{"empty", nil, ""},
		{"unverified only", []githubEmail{{Email: "a@x"}}, "a@x"},
		{"verified beats first", []githubEmail{{Email: "a@x"}, {Email: "b@x", Verified: true}}, "b@x"},
		{"primary verified wins", []githubEmail{
			{Email: "a@x", Verified: true},
			{Email: "b@x", Primary: true, Verified: true},
		}, "b@x"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, pickEmail(tc.emails))
		})
	}
}
