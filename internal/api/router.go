// Package api wires all API routes onto the provided ServeMux.
package api

import (
	"net/http"

	"github.com/d9705996/marknote/internal/api/handler"
	"github.com/d9705996/marknote/internal/api/jsonapi"
	"github.com/d9705996/marknote/internal/api/middleware"
	"github.com/d9705996/marknote/internal/health"
)

// Handlers bundles every resource handler the router mounts.
type Handlers struct {
	Health *health.Handler
	Auth   *handler.AuthHandler
	OAuth  *handler.OAuthHandler
	Files  *handler.FileHandler
	Groups *handler.GroupHandler
}

// RegisterRoutes registers all application routes on mux.
func RegisterRoutes(mux *http.ServeMux, h Handlers, jwtSecret string) {
	// Public health endpoints (no auth required)
	mux.HandleFunc("GET /api/v1/health", h.Health.ServeHealth)
	mux.HandleFunc("GET /api/v1/ready", h.Health.ServeReady)

	// Auth endpoints (no auth required)
	mux.HandleFunc("POST /api/v1/auth/register", h.Auth.Register)
	mux.HandleFunc("POST /api/v1/auth/login", h.Auth.Login)
	mux.HandleFunc("POST /api/v1/auth/refresh", h.Auth.Refresh)
	mux.HandleFunc("POST /api/v1/auth/logout", h.Auth.Logout)
	mux.HandleFunc("GET /api/v1/auth/{provider}", h.OAuth.Start)
	mux.HandleFunc("GET /api/v1/auth/{provider}/callback", h.OAuth.Callback)

	protected := middleware.RequireAuth(jwtSecret)
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, protected(fn))
	}

	// Literal segments win over {provider}, so these do not collide with
	// the OAuth routes above.
	handle("GET /api/v1/auth/profile", h.Auth.Profile)
	handle("PATCH /api/v1/auth/profile", h.Auth.UpdateProfile)
	handle("PUT /api/v1/auth/password", h.Auth.ChangePassword)
	handle("DELETE /api/v1/auth/account", h.Auth.DeleteAccount)

	handle("GET /api/v1/files", h.Files.List)
	handle("POST /api/v1/files", h.Files.Create)
	handle("GET /api/v1/files/count", h.Files.Count)
	handle("POST /api/v1/files/bulk-delete", h.Files.BulkDelete)
	handle("GET /api/v1/files/{id}", h.Files.Get)
	handle("PATCH /api/v1/files/{id}", h.Files.Update)
	handle("DELETE /api/v1/files/{id}", h.Files.Delete)

	handle("GET /api/v1/trash", h.Files.ListTrash)
	handle("DELETE /api/v1/trash", h.Files.EmptyTrash)
	handle("POST /api/v1/trash/restore", h.Files.RestoreAll)
	handle("POST /api/v1/trash/{id}/restore", h.Files.Restore)
	handle("DELETE /api/v1/trash/{id}", h.Files.Purge)

	handle("GET /api/v1/groups", h.Groups.List)
	handle("POST /api/v1/groups", h.Groups.Create)
	handle("GET /api/v1/groups/{id}", h.Groups.Get)
	handle("PATCH /api/v1/groups/{id}", h.Groups.Update)
	handle("DELETE /api/v1/groups/{id}", h.Groups.Delete)

	// Catch-all 404
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		jsonapi.RenderError(w, http.StatusNotFound, "not_found", "Not Found", "no route for "+r.Method+" "+r.URL.Path)
	})
}
