package http

import (
	"net/http"

	"github.com/frappe/release/pkg/domain/model"
	"github.com/frappe/release/pkg/domain/types"
)

// handleHealth handles health check requests
func handleHealth(w http.ResponseWriter, r *http.Request) {
	status := &model.HealthStatus{
		Status:  "healthy",
		Service: "release",
		Version: types.Version,
	}

	writeJSON(w, http.StatusOK, status)
}
