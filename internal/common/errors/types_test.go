package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		want     string
	}{
		{
			name:     "basic error",
			appError: ConfigError("configuration is invalid"),
			want:     "config: configuration is invalid",
		},
		{
			name:     "error with code",
			appError: AuthError("authentication failed").WithCode("AUTH001"),
			want:     "authentication: authentication failed: code=AUTH001",
		},
		{
			name:     "error with cause",
			appError: TransportError("get", errors.New("dial tcp: refused")),
			want:     "transport: remote cache get failed: cause=dial tcp: refused",
		},
		{
			name:     "error with sorted context",
			appError: ValidationError("bad input").WithContext("b", 2).WithContext("a", 1),
			want:     "validation: bad input: context={a=1, b=2}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.appError.Error())
		})
	}
}

func TestSerializationError(t *testing.T) {
	err := SerializationError("products:list", errors.New("unexpected end of JSON input"))
	assert.Equal(t, ErrTypeSerialization, err.Type)
	assert.Equal(t, "products:list", err.Context["key"])
}

func TestIsTypeAndGetType(t *testing.T) {
	wrapped := fmt.Errorf("loading product: %w", NotFoundError("product"))

	assert.True(t, IsType(wrapped, ErrTypeNotFound))
	assert.False(t, IsType(wrapped, ErrTypeValidation))
	assert.False(t, IsType(nil, ErrTypeNotFound))

	assert.Equal(t, ErrTypeNotFound, GetType(wrapped))
	assert.Equal(t, ErrTypeInternal, GetType(errors.New("plain")))
	assert.Equal(t, ErrorType(""), GetType(nil))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root")
	err := InternalError("wrapped", cause)
	assert.ErrorIs(t, err, cause)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ValidationError("x")))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(AuthError("x")))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(ForbiddenError("x")))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFoundError("x")))
	assert.Equal(t, http.StatusGatewayTimeout, HTTPStatus(TimeoutError("x")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("x")))
}
