package handler

import (
	"net/http"

	"github.com/d9705996/marknote/internal/api/jsonapi"
	"github.com/d9705996/marknote/internal/api/middleware"
	"github.com/d9705996/marknote/internal/paging"
)

// ListTrash handles GET /api/v1/trash.
func (h *FileHandler) ListTrash(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	res, err := h.notes.ListTrashed(ctx, middleware.UserID(ctx), paging.ParseInt(q.Get("page")), paging.ParseInt(q.Get("limit")))
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	jsonapi.RenderPage(w, res, fileResource)
}

// Restore handles POST /api/v1/trash/{id}/restore.
func (h *FileHandler) Restore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := h.notes.Restore(ctx, middleware.UserID(ctx), r.PathValue("id"))
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, fileResource(f))
}

// RestoreAll handles POST /api/v1/trash/restore.
func (h *FileHandler) RestoreAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := h.notes.RestoreAll(ctx, middleware.UserID(ctx))
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	jsonapi.RenderMeta(w, http.StatusOK, jsonapi.Meta{"restored": n})
}

// Purge handles DELETE /api/v1/trash/{id}.
func (h *FileHandler) Purge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.notes.PermanentDelete(ctx, middleware.UserID(ctx), r.PathValue("id")); err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EmptyTrash handles DELETE /api/v1/trash.
func (h *FileHandler) EmptyTrash(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := h.notes.EmptyTrash(ctx, middleware.UserID(ctx))
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	jsonapi.RenderMeta(w, http.StatusOK, jsonapi.Meta{"deleted": n})
}
