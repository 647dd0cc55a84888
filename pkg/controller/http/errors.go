package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/m-mizutani/ctxlog"

	"github.com/frappe/release/pkg/domain/types"
)

// statusFromError maps the domain error taxonomy to HTTP status codes
func statusFromError(err error) int {
	switch {
	case types.IsValidation(err):
		return http.StatusBadRequest
	case types.IsNotFound(err):
		return http.StatusNotFound
	case types.IsPrecondition(err):
		return http.StatusPreconditionFailed
	case types.IsDuplicateEntry(err), types.IsNoTagFound(err):
		return http.StatusConflict
	case types.IsUpstreamFetch(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error as JSON with the mapped status. The message
// is the full human-readable text; blocking errors name the exact unmet
// condition, never a bare failure code.
func respondError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFromError(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		ctxlog.From(context.Background()).Error("Failed to encode response", "error", err)
	}
}
