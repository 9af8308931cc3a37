// Package oauth exchanges authorization codes with Google and GitHub and
// normalizes the returned identity into a Profile.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/d9705996/marknote/internal/config"
	"golang.org/x/oauth2"
)

const (
	Google = "google"
	GitHub = "github"
)

// Profile is the identity a provider returned for a signed-in user. Email,
// Login, Name and AvatarURL may be empty.
type Profile struct {
	Provider     string
	ProviderID   string
	Email        string
	Login        string
	Name         string
	AvatarURL    string
	AccessToken  string
	RefreshToken string
}

// Provider is one OAuth identity provider.
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Profile, error)
}

// Registry holds the configured providers by name.
type Registry map[string]Provider

// NewRegistry registers every provider that has a client id.
func NewRegistry(cfg config.OAuthConfig) Registry {
	r := Registry{}
	if cfg.Google.Enabled() {
		r[Google] = NewGoogle(cfg.Google)
	}
	if cfg.GitHub.Enabled() {
		r[GitHub] = NewGitHub(cfg.GitHub)
	}
	return r
}

// Get returns the provider called name.
func (r Registry) Get(name string) (Provider, bool) {
	p, ok := r[name]
	return p, ok
}

// getJSON fetches url with an authenticated client and decodes the body into v.
func getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("get %s: status %d: %s", url, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

func exchange(ctx context.Context, cfg *oauth2.Config, code string) (*oauth2.Token, *http.Client, error) {
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("exchange code: %w", err)
	}
	return tok, cfg.Client(ctx, tok), nil
}
