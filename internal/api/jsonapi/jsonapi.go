// Package jsonapi provides lightweight JSON:API 1.1 envelope types and
// rendering helpers on top of encoding/json.
package jsonapi

import (
	"encoding/json"
	"net/http"

	"github.com/d9705996/marknote/internal/paging"
)

const contentType = "application/vnd.api+json"

// ---- Document types -------------------------------------------------------

// Document is a JSON:API single-resource document.
type Document struct {
	Data     any    `json:"data"`
	Included []any  `json:"included,omitempty"`
	Meta     Meta   `json:"meta,omitempty"`
	Links    *Links `json:"links,omitempty"`
}

// ListDocument is a JSON:API collection document. Pagination carries the
// page/limit/total block of offset-paginated listings.
type ListDocument struct {
	Data       []any        `json:"data"`
	Included   []any        `json:"included,omitempty"`
	Meta       Meta         `json:"meta,omitempty"`
	Links      *Links       `json:"links,omitempty"`
	Pagination *paging.Meta `json:"pagination,omitempty"`
}

// ResourceObject is the canonical JSON:API resource object.
type ResourceObject struct {
	Type          string                  `json:"type"`
	ID            string                  `json:"id"`
	Attributes    any                     `json:"attributes,omitempty"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
	Links         *Links                  `json:"links,omitempty"`
	Meta          Meta                    `json:"meta,omitempty"`
}

// Relationship represents a JSON:API relationship object.
type Relationship struct {
	Data  any    `json:"data,omitempty"`
	Links *Links `json:"links,omitempty"`
}

// Links holds JSON:API link objects.
type Links struct {
	Self    string `json:"self,omitempty"`
	Related string `json:"related,omitempty"`
	First   string `json:"first,omitempty"`
	Last    string `json:"last,omitempty"`
	Prev    string `json:"prev,omitempty"`
	Next    string `json:"next,omitempty"`
}

// Meta is a free-form map of non-standard meta-information.
type Meta map[string]any

// ---- Error types ----------------------------------------------------------

// ErrorDocument is a JSON:API error response document.
type ErrorDocument struct {
	Errors []ErrorObject `json:"errors"`
}

// ErrorObject represents a single JSON:API error.
type ErrorObject struct {
	Status string       `json:"status,omitempty"`
	Code   string       `json:"code,omitempty"`
	Title  string       `json:"title,omitempty"`
	Detail string       `json:"detail,omitempty"`
	Source *ErrorSource `json:"source,omitempty"`
	Meta   Meta         `json:"meta,omitempty"`
}

// ErrorSource identifies the source of a JSON:API error.
type ErrorSource struct {
	Pointer   string `json:"pointer,omitempty"`
	Parameter string `json:"parameter,omitempty"`
}

// ---- Render helpers -------------------------------------------------------

// Render writes a JSON:API document to w with the given HTTP status code.
func Render(w http.ResponseWriter, status int, doc any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(doc)
}

// RenderOne writes a single-resource document.
func RenderOne(w http.ResponseWriter, status int, data any) {
	Render(w, status, Document{Data: data})
}

// RenderMeta writes a document with no primary data, only meta.
func RenderMeta(w http.ResponseWriter, status int, meta Meta) {
	Render(w, status, Document{Data: nil, Meta: meta})
}

// RenderList writes a collection document.
func RenderList(w http.ResponseWriter, status int, data []any, pagination *paging.Meta) {
	if data == nil {
		data = []any{}
	}
	Render(w, status, ListDocument{Data: data, Pagination: pagination})
}

// RenderPage writes one page of a paginated listing, converting each row
// with toResource.
func RenderPage[T any](w http.ResponseWriter, res paging.Result[T], toResource func(*T) ResourceObject) {
	data := make([]any, 0, len(res.Data))
	for i := range res.Data {
		data = append(data, toResource(&res.Data[i]))
	}
	meta := res.Pagination
	RenderList(w, http.StatusOK, data, &meta)
}

// RenderError writes a single JSON:API error.
func RenderError(w http.ResponseWriter, status int, code, title, detail string) {
	RenderErrors(w, status, []ErrorObject{
		{
			Status: http.StatusText(status),
			Code:   code,
			Title:  title,
			Detail: detail,
		},
	})
}

// RenderErrors writes multiple JSON:API errors.
func RenderErrors(w http.ResponseWriter, status int, errs []ErrorObject) {
	Render(w, status, ErrorDocument{Errors: errs})
}
