package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	err := ValidationError("invalid sort parameter")
	assert.Equal(t, "validation: invalid sort parameter", err.Error())

	wrapped := InternalError("catalog query failed", fmt.Errorf("connection refused"))
	assert.Equal(t, "internal: catalog query failed: connection refused", wrapped.Error())
}

func TestError_HTTPStatus(t *testing.T) {
	tests := []struct {
		err    *Error
		status int
	}{
		{ValidationError("bad"), http.StatusBadRequest},
		{NotFoundError("missing"), http.StatusNotFound},
		{InternalError("boom", nil), http.StatusInternalServerError},
		{ExternalError("down", nil), http.StatusBadGateway},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, tt.err.HTTPStatus(), "type %s", tt.err.Type)
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := InternalError("append failed", cause)
	assert.ErrorIs(t, err, cause)
}

func TestWithContext(t *testing.T) {
	err := NotFoundError("broadcast not found").WithContext("broadcast_id", int64(42))
	assert.Equal(t, int64(42), err.Context["broadcast_id"])

	resp := err.ToResponse()
	assert.Equal(t, "broadcast not found", resp.Error)
	assert.Equal(t, TypeNotFound, resp.Type)
	assert.Equal(t, int64(42), resp.Context["broadcast_id"])
}

func TestAsStructuredError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, AsStructuredError(nil))
	})

	t.Run("already structured", func(t *testing.T) {
		orig := ValidationError("bad input")
		got := AsStructuredError(orig)
		assert.Same(t, orig, got)
	})

	t.Run("wrapped structured", func(t *testing.T) {
		orig := NotFoundError("gone")
		got := AsStructuredError(fmt.Errorf("handler: %w", orig))
		require.NotNil(t, got)
		assert.Equal(t, TypeNotFound, got.Type)
	})

	t.Run("plain error", func(t *testing.T) {
		got := AsStructuredError(fmt.Errorf("boom"))
		require.NotNil(t, got)
		assert.Equal(t, TypeInternal, got.Type)
	})
}
