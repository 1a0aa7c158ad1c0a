package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneKeepsIdentity(t *testing.T) {
	cloned := Clone(ErrValidation, "score required")

	assert.Equal(t, "score required", cloned.Message)
	assert.Equal(t, http.StatusBadRequest, cloned.Status)
	assert.True(t, errors.Is(cloned, ErrValidation))
	assert.False(t, errors.Is(cloned, ErrNoTargets))
	assert.Equal(t, "validation failed", ErrValidation.Message)
}

func TestWrapUnwrapsCause(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := Wrap(cause, ErrGradeAPIUnreachable.Code, ErrGradeAPIUnreachable.Status, "grade api unreachable")

	assert.True(t, errors.Is(err, ErrGradeAPIUnreachable))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "grade api unreachable: dial tcp: connection refused", err.Error())
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	wrapped := fmt.Errorf("saving: %w", ErrConflict)
	assert.Equal(t, ErrConflict, FromError(wrapped))

	plain := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, plain.Code)
	assert.Equal(t, http.StatusInternalServerError, plain.Status)
}
