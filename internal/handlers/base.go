package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"storefront/internal/cache"
	"storefront/internal/common/errors"
	"storefront/internal/common/logging"
	"storefront/internal/common/validation"
	"storefront/internal/storage"
	"storefront/internal/warmup"
)

// HealthChecker is any dependency that can report its health.
type HealthChecker interface {
	Health(ctx context.Context) error
}

type Handlers struct {
	storage   storage.Storage
	cache     *cache.Coordinator
	warmer    *warmup.Warmer
	validator *validation.Validator
	redis     HealthChecker
}

// New wires the handlers. redis may be nil when the remote tier is disabled.
func New(store storage.Storage, coord *cache.Coordinator, warmer *warmup.Warmer, redis HealthChecker) *Handlers {
	return &Handlers{
		storage:   store,
		cache:     coord,
		warmer:    warmer,
		validator: validation.Default(),
		redis:     redis,
	}
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error  string                  `json:"error"`
	Fields []validation.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("Failed to encode response", err)
	}
}

// writeError maps err to a status code. Internal details are logged, never
// returned to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	message := http.StatusText(status)

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) && status < http.StatusInternalServerError {
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		logging.WithContext(r.Context()).Error("Request failed", err,
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
		)
	}
	writeJSON(w, status, ErrorResponse{Error: message})
}

// decode reads a JSON body into dst and validates it.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid JSON body"})
		return false
	}
	if fields := h.validator.Fields(dst); len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Fields: fields})
		return false
	}
	return true
}
