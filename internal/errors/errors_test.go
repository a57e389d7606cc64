package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := Validation("handle must be 3-20 chars")

	assert.True(t, Is(err, ErrValidation))
	assert.False(t, Is(err, ErrNotFound))

	wrapped := fmt.Errorf("signup: %w", err)
	assert.True(t, Is(wrapped, ErrValidation))
}

func TestError_MessageIncludesCause(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := Unavailable(cause, "read like relation")

	assert.Equal(t, "read like relation: connection reset", err.Error())
	assert.Equal(t, cause, Unwrap(err))
	assert.Equal(t, http.StatusServiceUnavailable, err.HTTPStatus())
}

func TestCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeAlreadyExists, http.StatusConflict},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeValidation, http.StatusBadRequest},
		{CodeUnavailable, http.StatusServiceUnavailable},
		{CodeInternal, http.StatusInternalServerError},
		{Code("UNKNOWN"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}
