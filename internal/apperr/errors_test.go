package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindsMatchThroughWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("create nomination: %w", Persistence("failed to save nomination", cause))

	assert.True(t, errors.Is(err, ErrPersistence))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "failed to save nomination", Message(err))
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
		msg  string
	}{
		{"validation", Validation("%s is required", "nomineeName"), ErrValidation, "nomineeName is required"},
		{"not found", NotFound("nomination"), ErrNotFound, "nomination not found"},
		{"conflict", Conflict("already voted"), ErrStateConflict, "already voted"},
		{"unauthorized", Unauthorized("login required"), ErrUnauthorized, "login required"},
		{"forbidden", Forbidden("admins only"), ErrForbidden, "admins only"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.kind)
			assert.Equal(t, tt.msg, tt.err.Error())
			assert.Equal(t, tt.msg, Message(tt.err))
		})
	}
}

func TestMessageForUnknownError(t *testing.T) {
	assert.Equal(t, "Internal server error", Message(errors.New("boom")))
}
