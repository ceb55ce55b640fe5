package errors_test

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nufs-go/nufs/errors"
)

func TestErrorWithMessage(t *testing.T) {
	newErr := errors.ErrNotFound.WithMessage("/a/b/c")
	assert.Equal(t, "no such file or directory: /a/b/c", newErr.Error())
	assert.True(t, stderrors.Is(newErr, errors.ErrNotFound))
}

func TestErrorWrap(t *testing.T) {
	cause := stderrors.New("short write")
	newErr := errors.ErrInvalidArgument.Wrap(cause)

	assert.True(t, stderrors.Is(newErr, cause))
	assert.True(t, stderrors.Is(newErr, errors.ErrInvalidArgument))
}

func TestErrorIsDistinguishesErrno(t *testing.T) {
	assert.False(t, stderrors.Is(errors.ErrExists, errors.ErrNotFound))
}
