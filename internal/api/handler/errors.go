package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/d9705996/marknote/internal/api/jsonapi"
	"github.com/d9705996/marknote/internal/apperr"
)

const maxBodyBytes = 4 << 20

// renderErr maps an application error onto a JSON:API error response.
// Internal errors are logged and their detail is withheld from the client.
func renderErr(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var status int
	switch apperr.KindOf(err) {
	case apperr.Validation:
		status = http.StatusBadRequest
	case apperr.NotFound:
		status = http.StatusNotFound
	case apperr.Conflict:
		status = http.StatusConflict
	case apperr.Unauthorized:
		status = http.StatusUnauthorized
	default:
		log.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		jsonapi.RenderError(w, http.StatusInternalServerError,
			"internal_error", "Internal Server Error", "an unexpected error occurred")
		return
	}

	obj := jsonapi.ErrorObject{
		Status: http.StatusText(status),
		Code:   apperr.KindOf(err).String(),
		Title:  http.StatusText(status),
		Detail: err.Error(),
	}
	if conflicts := apperr.ConflictsOf(err); len(conflicts) > 0 {
		obj.Meta = jsonapi.Meta{"conflicts": conflicts}
	}
	jsonapi.RenderErrors(w, status, []jsonapi.ErrorObject{obj})
}

// decode reads a JSON request body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return apperr.Wrap(apperr.Validation, "request body must be valid JSON", err)
}

// attributes unwraps {"data":{"attributes":{...}}} when the client sends a
// JSON:API document and returns raw otherwise, so both envelope and plain
// bodies are accepted.
func attributes(raw json.RawMessage) json.RawMessage {
	var doc struct {
		Data *struct {
			Attributes json.RawMessage `json:"attributes"`
		} `json:"data"`
	}
	if json.Unmarshal(raw, &doc) == nil && doc.Data != nil && len(doc.Data.Attributes) > 0 {
		return doc.Data.Attributes
	}
	return raw
}

// decodeAttrs decodes a plain or JSON:API-enveloped body into v.
func decodeAttrs(w http.ResponseWriter, r *http.Request, v any) error {
	var raw json.RawMessage
	if err := decode(w, r, &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(attributes(raw), v); err != nil {
		return apperr.Wrap(apperr.Validation, "request body has the wrong shape", err)
	}
	return nil
}
