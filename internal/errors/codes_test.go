package errors

import (
	"context"
	"fmt"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	err := AdapterFailed("history", context.DeadlineExceeded)
	assert.Equal(t, "[ADAPTER_FAILED] history retrieval failed: context deadline exceeded", err.Error())
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	plain := AdapterUnavailable("logbook")
	assert.Equal(t, "[ADAPTER_UNAVAILABLE] logbook source is not configured", plain.Error())
}

func TestIsCode_ThroughWrapping(t *testing.T) {
	base := InvalidArgument("bad filter", nil)
	wrapped := pkgerrors.Wrap(base, "decode options")
	doubly := fmt.Errorf("build: %w", wrapped)

	assert.True(t, IsCode(doubly, ErrCodeInvalidArgument))
	assert.False(t, IsCode(doubly, ErrCodeTimeout))
	assert.Equal(t, ErrCodeInvalidArgument, GetCodeFromError(doubly, ErrCodeServiceUnavailable))
	assert.Equal(t, ErrCodeServiceUnavailable, GetCodeFromError(fmt.Errorf("x"), ErrCodeServiceUnavailable))
}

func TestWithContext(t *testing.T) {
	err := Timeout("slow").WithContext("source", "recorder")
	assert.Equal(t, "recorder", err.Context["source"])
}
