package oauth

import (
	"context"
	"errors"

	"github.com/d9705996/marknote/internal/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleProvider signs users in with a Google account.
type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
}

// NewGoogle creates a GoogleProvider from its client registration.
func NewGoogle(p config.OAuthProvider) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			RedirectURL:  p.RedirectURI,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoints.Google,
		},
		userInfoURL: googleUserInfoURL,
	}
}

func (g *GoogleProvider) Name() string { return Google }

func (g *GoogleProvider) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

type googleUser struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (g *GoogleProvider) Exchange(ctx context.Context, code string) (*Profile, error) {
	tok, client, err := exchange(ctx, g.config, code)
	if err != nil {
		return nil, err
	}
	var u googleUser
	if err := getJSON(ctx, client, g.userInfoURL, &u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, errors.New("google: profile has no id")
	}
	return &Profile{
		Provider:     Google,
		ProviderID:   u.ID,
		Email:        u.Email,
		Name:         u.Name,
		AvatarURL:    u.Picture,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}, nil
}
