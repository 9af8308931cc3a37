package oauth

import (
	"context"
	"errors"
	"strconv"

	"github.com/d9705996/marknote/internal/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const githubAPI = "https://api.github.com"

// GitHubProvider signs users in with a GitHub account.
type GitHubProvider struct {
	config  *oauth2.Config
	apiBase string
}

// NewGitHub creates a GitHubProvider from its client registration.
func NewGitHub(p config.OAuthProvider) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			RedirectURL:  p.RedirectURI,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     endpoints.GitHub,
		},
		apiBase: githubAPI,
	}
}

func (g *GitHubProvider) Name() string { return GitHub }

func (g *GitHubProvider) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state)
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (g *GitHubProvider) Exchange(ctx context.Context, code string) (*Profile, error) {
	tok, client, err := exchange(ctx, g.config, code)
	if err != nil {
		return nil, err
	}
	var u githubUser
	if err := getJSON(ctx, client, g.apiBase+"/user", &u); err != nil {
		return nil, err
	}
	if u.ID == 0 {
		return nil, errors.New("github: profile has no id")
	}

	email := u.Email
	if email == "" {
		// Private addresses are only listed by /user/emails. A failure here
		// is not fatal: the account layer synthesizes a noreply address.
		var emails []githubEmail
		if err := getJSON(ctx, client, g.apiBase+"/user/emails", &emails); err == nil {
			email = pickEmail(emails)
		}
	}

	return &Profile{
		Provider:     GitHub,
		ProviderID:   strconv.FormatInt(u.ID, 10),
		Email:        email,
		Login:        u.Login,
		Name:         u.Name,
		AvatarURL:    u.AvatarURL,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}, nil
}

// pickEmail prefers the primary verified address, then any verified one,
// then whatever comes first.
func pickEmail(emails []githubEmail) string {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email
		}
	}
	if len(emails) > 0 {
		return emails[0].Email
	}
	return ""
}
