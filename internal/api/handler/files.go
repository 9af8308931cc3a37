package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/d9705996/marknote/internal/api/jsonapi"
	"github.com/d9705996/marknote/internal/api/middleware"
	"github.com/d9705996/marknote/internal/apperr"
	"github.com/d9705996/marknote/internal/note"
	"github.com/d9705996/marknote/internal/paging"
)

// FileHandler handles /api/v1/files/* and /api/v1/trash/* routes.
type FileHandler struct {
	notes *note.Service
	log   *slog.Logger
}

// NewFileHandler creates a FileHandler.
func NewFileHandler(notes *note.Service, log *slog.Logger) *FileHandler {
	return &FileHandler{notes: notes, log: log}
}

// listOptions reads page, limit, order_by, order, group_id and ungrouped.
func listOptions(r *http.Request) note.ListOptions {
	q := r.URL.Query()
	orderBy := q.Get("order_by")
	if orderBy == "" {
		orderBy = q.Get("orderBy")
	}
	groupID := q.Get("group_id")
	if groupID == "" {
		groupID = q.Get("groupId")
	}
	ungrouped, _ := strconv.ParseBool(q.Get("ungrouped"))
	return note.ListOptions{
		Page:      paging.ParseInt(q.Get("page")),
		Limit:     paging.ParseInt(q.Get("limit")),
		OrderBy:   orderBy,
		Order:     q.Get("order"),
		GroupID:   groupID,
		Ungrouped: ungrouped,
	}
}

// List handles GET /api/v1/files. A search parameter switches to keyword
// search over title and content.
func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	opts := listOptions(r)
	res, err := h.notes.Search(ctx, middleware.UserID(ctx), r.URL.Query().Get("search"), opts)
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	jsonapi.RenderPage(w, res, fileResource)
}

// Count handles GET /api/v1/files/count.
func (h *FileHandler) Count(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := h.notes.Count(ctx, middleware.UserID(ctx))
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	jsonapi.RenderMeta(w, http.StatusOK, jsonapi.Meta{"count": n})
}

// Get handles GET /api/v1/files/{id}.
func (h *FileHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := h.notes.Get(ctx, middleware.UserID(ctx), r.PathValue("id"))
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, fileResource(f))
}

type fileCreate struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	GroupID *string `json:"groupId"`
}

// Create handles POST /api/v1/files.
func (h *FileHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req fileCreate
	if err := decodeAttrs(w, r, &req); err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	ctx := r.Context()
	f, err := h.notes.Create(ctx, middleware.UserID(ctx), note.CreateInput{
		Title:   req.Title,
		Content: req.Content,
		GroupID: req.GroupID,
	})
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusCreated, fileResource(f))
}

// Update handles PATCH /api/v1/files/{id}.
func (h *FileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var p note.Patch
	if err := decodeAttrs(w, r, &p); err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	ctx := r.Context()
	f, err := h.notes.Update(ctx, middleware.UserID(ctx), r.PathValue("id"), p)
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, fileResource(f))
}

// Delete handles DELETE /api/v1/files/{id}: the file moves to the trash.
func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.notes.SoftDelete(ctx, middleware.UserID(ctx), r.PathValue("id")); err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type bulkDelete struct {
	IDs []string `json:"ids"`
}

// BulkDelete handles POST /api/v1/files/bulk-delete.
func (h *FileHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDelete
	if err := decodeAttrs(w, r, &req); err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	if req.IDs == nil {
		renderErr(w, r, h.log, apperr.ValidationErr("ids are required"))
		return
	}
	ctx := r.Context()
	n, err := h.notes.BulkSoftDelete(ctx, middleware.UserID(ctx), req.IDs)
	if err != nil {
		renderErr(w, r, h.log, err)
		return
	}
	jsonapi.RenderMeta(w, http.StatusOK, jsonapi.Meta{"deleted": n})
}
