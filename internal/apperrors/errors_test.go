package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationMatchesSentinel(t *testing.T) {
	err := Validation("bad %s", "input")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "bad input", err.Error())
}

func TestAuthRequiredIsAlsoPermissionDenied(t *testing.T) {
	err := AuthRequired("sign in first")
	assert.ErrorIs(t, err, ErrAuthRequired)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	plain := PermissionDenied("not yours")
	assert.ErrorIs(t, plain, ErrPermissionDenied)
	assert.NotErrorIs(t, plain, ErrAuthRequired)
}

func TestInferenceTimeoutFlag(t *testing.T) {
	timeout := &InferenceError{Msg: "too slow", Timeout: true}
	assert.ErrorIs(t, timeout, ErrInference)
	assert.ErrorIs(t, timeout, ErrTimeout)

	plain := &InferenceError{Msg: "bad payload"}
	assert.ErrorIs(t, plain, ErrInference)
	assert.NotErrorIs(t, plain, ErrTimeout)
}

func TestWrappedErrorsStillMatch(t *testing.T) {
	err := fmt.Errorf("scoring: %w", Conflict("duplicate"))
	assert.ErrorIs(t, err, ErrConflict)

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "duplicate", conflict.Msg)
}

func TestStorageErrorCarriesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := &StorageError{Msg: "upload failed", Cause: cause}
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}
