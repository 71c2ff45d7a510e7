package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	t.Run("without cause", func(t *testing.T) {
		err := New(ErrCodeNotFound, "Session not found")
		assert.Equal(t, "NOT_FOUND: Session not found", err.Error())
	})

	t.Run("with cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Wrap(ErrCodeDatabase, "Database error", cause)
		assert.Contains(t, err.Error(), "DATABASE_ERROR")
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(ErrCodeInternal, "wrapped", cause)
	assert.True(t, errors.Is(err, cause))
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		code ErrorCode
	}{
		{"unauthorized", Unauthorized("bad token"), ErrCodeUnauthorized},
		{"cross tenant", CrossTenantForbidden(), ErrCodeCrossTenantForbidden},
		{"not assigned teacher", NotAssignedTeacher(), ErrCodeNotAssignedTeacher},
		{"not in batch", NotInBatch(), ErrCodeNotInBatch},
		{"not moderator", NotModerator(), ErrCodeNotModerator},
		{"muted", Muted(), ErrCodeMuted},
		{"class ended", ClassEnded(), ErrCodeClassEnded},
		{"already ended", AlreadyEnded(), ErrCodeAlreadyEnded},
		{"not found", NotFound("Session"), ErrCodeNotFound},
		{"missing required", MissingRequired("sessionId"), ErrCodeMissingRequired},
		{"upstream provider", UpstreamProvider("end broadcast", errors.New("quota")), ErrCodeUpstreamProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestAsAppError(t *testing.T) {
	t.Run("direct app error", func(t *testing.T) {
		appErr, ok := AsAppError(ClassEnded())
		assert.True(t, ok)
		assert.Equal(t, ErrCodeClassEnded, appErr.Code)
	})

	t.Run("wrapped app error", func(t *testing.T) {
		err := fmt.Errorf("action failed: %w", AlreadyEnded())
		appErr, ok := AsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, ErrCodeAlreadyEnded, appErr.Code)
	})

	t.Run("plain error", func(t *testing.T) {
		_, ok := AsAppError(errors.New("plain"))
		assert.False(t, ok)
	})
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeMuted, GetCode(Muted()))
	assert.Equal(t, ErrCodeInternal, GetCode(errors.New("unknown")))
	assert.Equal(t, ErrCodeInternal, GetCode(nil))
}
