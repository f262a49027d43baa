package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrBackendRequest, "upstream failed").
		WithCause(root).
		WithHTTPStatus(502).
		WithRetryable(true).
		WithProvider("openai")

	assert.Equal(t, ErrBackendRequest, GetErrorCode(err))
	assert.True(t, IsRetryable(err))
	assert.ErrorIs(t, err, root)
	assert.Equal(t, "[BACKEND_REQUEST] upstream failed: root", err.Error())
}

func TestError_HelpersSeeThroughWrapping(t *testing.T) {
	t.Parallel()

	inner := Errorf(ErrTemplate, "missing placeholder %s", "{{input}}")
	wrapped := fmt.Errorf("compile: %w", inner)

	got, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Same(t, inner, got)
	assert.True(t, IsCode(wrapped, ErrTemplate))
	assert.False(t, IsRetryable(wrapped))
	assert.Equal(t, "[TEMPLATE] missing placeholder {{input}}", inner.Error())
}

func TestError_PlainErrors(t *testing.T) {
	t.Parallel()

	plain := errors.New("boom")
	assert.False(t, IsRetryable(plain))
	assert.Equal(t, ErrorCode(""), GetErrorCode(plain))
	_, ok := AsError(nil)
	assert.False(t, ok)
}
