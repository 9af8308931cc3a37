package handler

import (
	"log/slog"
	"net/http"

	"github.com/d9705996/marknote/internal/api/jsonapi"
	"github.com/d9705996/marknote/internal/api/middleware"
	"github.com/d9705996/marknote/internal/group"
	"github.com/d9705996/marknote/internal/paging"
)

// GroupHandler handles /api/v1/groups/* routes.
type GroupHandler struct {
	groups *group.Service
	log    *slog.Logger
}

// NewGroupHandler creates a GroupHandler.
func NewGroupHandler(groups *group.Service, log *slog.Logger) *GroupHandler {
	return &GroupHandler{groups: groups, log: log}
}

// List handles GET /api/v1/groups.
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	res, err := h.groups.List(ctx, middleware.UserID(ctx), paging.ParseInt(q.Get("page")), paging.ParseInt(q.Get("limit")))
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	jsonapi.RenderPage(w, res, groupResource)
}

// Get handles GET /api/v1/groups/{id}. The group's active files are
// included in the document.
func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	g, err := h.groups.Get(ctx, middleware.UserID(ctx), r.PathValue("id"))
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	included := make([]any, 0, len(g.Files))
	for i := range g.Files {
		included = append(included, fileResource(&g.Files[i]))
	}
	jsonapi.Render(w, http.StatusOK, jsonapi.Document{Data: groupResource(g), Included: included})
}

type groupCreate struct {
	Name string `json:"name"`
}

// Create handles POST /api/v1/groups.
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req groupCreate
	if err := decodeAttrs(w, r, &req); err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	ctx := r.Context()
	g, err := h.groups.Create(ctx, middleware.UserID(ctx), req.Name)
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusCreated, groupResource(g))
}

// Update handles PATCH /api/v1/groups/{id}.
func (h *GroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	var p group.Patch
	if err := decodeAttrs(w, r, &p); err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	ctx := r.Context()
	g, err := h.groups.Update(ctx, middleware.UserID(ctx), r.PathValue("id"), p)
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, groupResource(g))
}

// Delete handles DELETE /api/v1/groups/{id}.
func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.groups.Delete(ctx, middleware.UserID(ctx), r.PathValue("id")); err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
