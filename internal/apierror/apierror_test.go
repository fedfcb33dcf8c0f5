package apierror

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAPIError(t *testing.T) {
	err := NewAPIError(ErrNotFound, "Deal with ID 'dl_1' not found", nil)
	assert.Equal(t, ErrNotFound, err.Code)
	assert.Equal(t, "NOT_FOUND: Deal with ID 'dl_1' not found", err.Error())
}

func TestIsCode(t *testing.T) {
	err := NewAPIError(ErrConflict, "Deal 'dl_1' is CANCELLED, expected PENDING", "CANCELLED")
	assert.True(t, IsCode(err, ErrConflict))
	assert.False(t, IsCode(err, ErrNotFound))
	assert.False(t, IsCode(errors.New("plain error"), ErrConflict))
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	cases := map[ErrorCode]int{
		ErrNotFound:        http.StatusNotFound,
		ErrForbidden:       http.StatusForbidden,
		ErrConflict:        http.StatusConflict,
		ErrInvalidState:    http.StatusConflict,
		ErrDuplicateActive: http.StatusConflict,
		ErrInvalidInput:    http.StatusBadRequest,
		ErrInternalServer:  http.StatusInternalServerError,
	}

	for code, want := range cases {
		got := MapErrorToHTTPStatus(NewAPIError(code, "msg", nil))
		assert.Equal(t, want, got)
	}

	assert.Equal(t, http.StatusInternalServerError, MapErrorToHTTPStatus(errors.New("plain error")))
}
