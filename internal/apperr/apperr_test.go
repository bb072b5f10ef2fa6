package apperr

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{"plain apperr", New(NotFound, "event %s missing", "abc"), NotFound},
		{"wrapped apperr", errors.Wrap(New(Unauthorized, "not the creator"), "confirm"), Unauthorized},
		{"non-apperr is transient", errors.New("connection refused"), Transient},
		{"apperr around cause", Wrap(errors.New("timeout"), InvalidState, "event closed"), InvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, KindOf(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := New(InvalidInput, "window end before start")
	assert.Equal(t, "invalid_input: window end before start", err.Error())

	wrapped := Wrap(errors.New("no rows"), NotFound, "event missing")
	assert.Contains(t, wrapped.Error(), "not_found: event missing")
	assert.Contains(t, wrapped.Error(), "no rows")
}

func TestIs(t *testing.T) {
	assert.True(t, Is(New(Conflict, "already confirmed"), Conflict))
	assert.False(t, Is(New(Conflict, "already confirmed"), NotFound))
}
