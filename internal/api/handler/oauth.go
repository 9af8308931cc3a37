package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/d9705996/marknote/internal/account"
	"github.com/d9705996/marknote/internal/api/jsonapi"
	"github.com/d9705996/marknote/internal/auth"
	"github.com/d9705996/marknote/internal/oauth"
)

// OAuthHandler handles the provider redirect and callback routes. The
// browser ends up back on the client app either way: with a token cookie on
// success or on /login?error=... on failure.
type OAuthHandler struct {
	providers oauth.Registry
	accounts  *account.Service
	tokens    TokenConfig
	clientURL string
	log       *slog.Logger
}

// NewOAuthHandler creates an OAuthHandler.
func NewOAuthHandler(providers oauth.Registry, accounts *account.Service, tokens TokenConfig, clientURL string, log *slog.Logger) *OAuthHandler {
	return &OAuthHandler{providers: providers, accounts: accounts, tokens: tokens, clientURL: clientURL, log: log}
}

// Start handles GET /api/v1/auth/{provider}.
func (h *OAuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	p, ok := h.providers.Get(r.PathValue("provider"))
	if !ok {
		jsonapi.RenderError(w, http.StatusNotFound, "unknown_provider", "Not Found", "sign-in provider is not configured")
		return
	}
	state, err := auth.IssueState(p.Name(), h.tokens.Secret)
	if err != nil {
		jsonapi.RenderError(w, http.StatusInternalServerError, "state_error", "Internal Server Error", "failed to start sign-in")
		return
	}
	http.Redirect(w, r, p.AuthCodeURL(state), http.StatusFound)
}

// Callback handles GET /api/v1/auth/{provider}/callback.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	p, ok := h.providers.Get(r.PathValue("provider"))
	if !ok {
		h.fail(w, r, "unknown_provider")
		return
	}
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		h.fail(w, r, e)
		return
	}
	code := q.Get("code")
	if code == "" {
		h.fail(w, r, "no_code")
		return
	}
	if err := auth.VerifyState(q.Get("state"), p.Name(), h.tokens.Secret); err != nil {
		h.log.WarnContext(r.Context(), "oauth state rejected", "provider", p.Name(), "err", err)
		h.fail(w, r, "invalid_state")
		return
	}

	ctx := r.Context()
	profile, err := p.Exchange(ctx, code)
	if err != nil {
		h.log.ErrorContext(ctx, "oauth exchange failed", "provider", p.Name(), "err", err)
		h.fail(w, r, "exchange_failed")
		return
	}
	u, isNew, err := h.accounts.LinkOAuth(ctx, profile)
	if err != nil {
		h.log.ErrorContext(ctx, "oauth link failed", "provider", p.Name(), "err", err)
		h.fail(w, r, err.Error())
		return
	}
	token, err := auth.IssueAccessToken(u.ID, u.Email, h.tokens.Secret, h.tokens.AccessTTL)
	if err != nil {
		h.fail(w, r, "token_error")
		return
	}

	auth.SetTokenCookie(w, token, h.tokens.AccessTTL, h.tokens.SecureCookie)
	http.Redirect(w, r, h.clientURL+"/auth/callback?isNewUser="+strconv.FormatBool(isNew), http.StatusFound)
}

func (h *OAuthHandler) fail(w http.ResponseWriter, r *http.Request, reason string) {
	http.Redirect(w, r, h.clientURL+"/login?error="+url.QueryEscape(reason), http.StatusFound)
}
