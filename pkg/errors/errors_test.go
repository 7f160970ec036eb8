package errors

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_TypeHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"validation", NewValidationError("bad gender"), IsValidation},
		{"not found", NewNotFoundError("person"), IsNotFound},
		{"conflict", NewConflictError("duplicate"), IsConflict},
		{"quota", NewQuotaExceededError("k", 10, 5), IsQuotaExceeded},
		{"corrupt", NewCorruptDataError("bad json", io.ErrUnexpectedEOF), IsCorruptData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			assert.True(t, IsAppError(tt.err))
			assert.NotEmpty(t, GetAppError(tt.err).StackTrace)
		})
	}
}

func TestAppError_FieldsInMessage(t *testing.T) {
	err := NewValidationError("invalid person").
		WithField("name", "is required").
		WithField("gender", "must be male, female or empty")

	assert.Equal(t,
		"VALIDATION: invalid person [gender: must be male, female or empty; name: is required]",
		err.Error())
}

func TestWrap(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, "ignored"))
	})

	t.Run("plain error becomes internal", func(t *testing.T) {
		cause := errors.New("disk gone")
		err := Wrap(cause, "save snapshot")

		require.True(t, IsType(err, ErrorTypeInternal))
		assert.ErrorIs(t, err, cause)
	})

	t.Run("app error keeps its type", func(t *testing.T) {
		err := Wrapf(NewStorageError("set", io.EOF), "autosave %d", 3)

		assert.True(t, IsType(err, ErrorTypeStorage))
		assert.Contains(t, err.Error(), "autosave 3")
		assert.ErrorIs(t, err, io.EOF)
	})
}
