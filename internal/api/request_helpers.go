package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/tasktracker-api/internal/api/shared"
	"github.com/phrazzld/tasktracker-api/internal/domain"
)

// getPathID extracts a non-empty path parameter.
func getPathID(r *http.Request, paramName string) (string, error) {
	id := strings.TrimSpace(chi.URLParam(r, paramName))
	if id == "" {
		return "", domain.NewValidationError(paramName, "is required", domain.ErrValidation)
	}
	return id, nil
}

// decodeAndValidate decodes the body into req and validates it. On failure it
// writes a 400 with message and returns false.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req any, message string, log *slog.Logger) bool {
	if err := shared.DecodeJSON(r, req); err != nil {
		log.Warn("invalid request format", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, message)
		return false
	}
	if err := shared.ValidateRequest(req); err != nil {
		log.Warn("request validation failed", slog.String("error", SanitizeValidationError(err)))
		shared.RespondWithError(w, r, http.StatusBadRequest, message)
		return false
	}
	return true
}

// tenantParam returns the userId query parameter or the default task tenant.
func tenantParam(r *http.Request) string {
	if tenant := strings.TrimSpace(r.URL.Query().Get("userId")); tenant != "" {
		return tenant
	}
	return domain.DefaultTaskTenant
}
