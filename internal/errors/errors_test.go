package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypePredicates(t *testing.T) {
	tests := []struct {
		err      error
		check    func(error) bool
		wantCode string
	}{
		{NewValidationError("bad", nil), IsValidationError, "VALIDATION_ERROR"},
		{NewNotFoundError("gone", nil), IsNotFoundError, "NOT_FOUND"},
		{NewConflictError("busy", nil), IsConflictError, "CONFLICT"},
	}
	for _, tt := range tests {
		assert.True(t, tt.check(tt.err), tt.err.Error())
		assert.True(t, tt.check(fmt.Errorf("wrapped: %w", tt.err)))
		var app *AppError
		require.True(t, errors.As(tt.err, &app))
		assert.Equal(t, tt.wantCode, app.Code)
	}
	assert.False(t, IsNotFoundError(errors.New("plain")))
	assert.False(t, IsValidationError(nil))
}

func TestBrokenReference(t *testing.T) {
	ref := &BrokenReferenceError{SceneIndex: 2, ChoiceIndex: 1, TargetIndex: 9, SceneCount: 4}
	err := NewBrokenReferenceError(ref)

	assert.True(t, IsBrokenReferenceError(err))
	assert.Equal(t, "broken choice reference: scene 2 choice 1 targets index 9, graph has 4 scenes", err.Error())

	var got *BrokenReferenceError
	require.True(t, errors.As(err, &got))
	assert.Same(t, ref, got)
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError(nil, "ctx", ErrorTypeError))

	err := WrapError(NewNotFoundError("session x", nil), "advance", ErrorTypeError)
	assert.True(t, IsNotFoundError(err), "keeps the inner type")
	assert.Equal(t, "advance: session x", err.Error())

	plain := WrapError(errors.New("disk"), "save", ErrorTypeError)
	var app *AppError
	require.True(t, errors.As(plain, &app))
	assert.Equal(t, ErrorTypeError, app.Type)
	assert.Equal(t, "save: disk", plain.Error())
}
