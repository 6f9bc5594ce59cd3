package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := NotFoundf("item %s not cached", "abc")

	assert.True(t, Is(err, ErrNotFound))
	assert.False(t, Is(err, ErrValidation))
}

func TestError_IsThroughWrapping(t *testing.T) {
	cause := New("permission denied")
	err := fmt.Errorf("open cache: %w", Unavailable(cause))

	assert.True(t, Is(err, ErrStorageUnavailable))
	assert.True(t, Is(err, cause))
	assert.Contains(t, err.Error(), "permission denied")
}

func TestError_WithDetails(t *testing.T) {
	details := map[string]string{"url": "must be a valid URL"}
	err := ValidationWithDetails("validation failed", details)

	assert.Equal(t, details, err.Details)
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus())
	assert.Equal(t, http.StatusBadRequest, err.GetStatus())
}

func TestCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code   Code
		status int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeValidation, http.StatusBadRequest},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeNetwork, http.StatusBadGateway},
		{CodeStorageUnavailable, http.StatusServiceUnavailable},
		{CodeNotInitialized, http.StatusInternalServerError},
		{CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.status, tt.code.HTTPStatus())
		})
	}
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNetwork, CodeOf(Network(New("dial tcp"), "fetch contents")))
	assert.Equal(t, CodeInternal, CodeOf(New("plain")))
	assert.Equal(t, CodeNotInitialized, CodeOf(fmt.Errorf("cache: %w", ErrNotInitialized)))
}
