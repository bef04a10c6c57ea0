// Package errors defines the application error taxonomy shared by the cache,
// storage and HTTP layers.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeConnection ErrorType = "connection"
	ErrTypeValidation ErrorType = "validation"
	ErrTypeConfig     ErrorType = "config"
	ErrTypeAuth       ErrorType = "authentication"
	ErrTypeForbidden  ErrorType = "forbidden"
	ErrTypeNotFound   ErrorType = "not_found"
	ErrTypeInternal   ErrorType = "internal"
	ErrTypeTimeout    ErrorType = "timeout"
	// ErrTypeTransport marks a failed exchange with the remote cache tier.
	ErrTypeTransport ErrorType = "transport"
	// ErrTypeSerialization marks a value that could not be encoded or decoded.
	ErrTypeSerialization ErrorType = "serialization"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		contextParts := make([]string, 0, len(keys))
		for _, k := range keys {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

func ConnectionError(msg string, cause error) *AppError {
	return &AppError{Type: ErrTypeConnection, Message: msg, Cause: cause}
}

func ValidationError(msg string) *AppError {
	return &AppError{Type: ErrTypeValidation, Message: msg}
}

func ConfigError(msg string) *AppError {
	return &AppError{Type: ErrTypeConfig, Message: msg}
}

func AuthError(msg string) *AppError {
	return &AppError{Type: ErrTypeAuth, Message: msg}
}

func ForbiddenError(msg string) *AppError {
	return &AppError{Type: ErrTypeForbidden, Message: msg}
}

// NotFoundError creates a new not found error for the named resource
func NotFoundError(resource string) *AppError {
	return &AppError{Type: ErrTypeNotFound, Message: fmt.Sprintf("%s not found", resource)}
}

func InternalError(msg string, cause error) *AppError {
	return &AppError{Type: ErrTypeInternal, Message: msg, Cause: cause}
}

// TimeoutError creates a new timeout error
func TimeoutError(operation string) *AppError {
	return &AppError{Type: ErrTypeTimeout, Message: fmt.Sprintf("timeout during %s", operation)}
}

// TransportError wraps a failed remote cache command.
func TransportError(operation string, cause error) *AppError {
	return &AppError{Type: ErrTypeTransport, Message: fmt.Sprintf("remote cache %s failed", operation), Cause: cause}
}

// SerializationError wraps a JSON encode/decode failure for key.
func SerializationError(key string, cause error) *AppError {
	return (&AppError{Type: ErrTypeSerialization, Message: "cache value could not be serialized", Cause: cause}).
		WithContext("key", key)
}

// IsType reports whether any error in err's chain is an AppError of errType.
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.Type == errType
}

// GetType returns the error type if it's an AppError, otherwise ErrTypeInternal
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return ErrTypeInternal
	}
	return appErr.Type
}

// HTTPStatus maps an error to the status code handlers respond with.
func HTTPStatus(err error) int {
	switch GetType(err) {
	case "":
		return http.StatusOK
	case ErrTypeValidation:
		return http.StatusBadRequest
	case ErrTypeAuth:
		return http.StatusUnauthorized
	case ErrTypeForbidden:
		return http.StatusForbidden
	case ErrTypeNotFound:
		return http.StatusNotFound
	case ErrTypeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
