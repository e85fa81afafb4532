package failure

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "unreachable", Unreachable.String())
	assert.Equal(t, "application", Application.String())
	assert.Equal(t, "precondition", Precondition.String())
	assert.Equal(t, "unknown", KindUnknown.String())
}

func TestNewUnreachable(t *testing.T) {
	cause := errors.New("dial tcp 127.0.0.1:6969: connection refused")
	err := NewUnreachable("/connect", cause)

	assert.True(t, Is(err, Unreachable))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, cause.Error(), Message(err))
	assert.Contains(t, err.Error(), "/connect")
}

func TestNewApplication(t *testing.T) {
	err := NewApplication("/print_dots", 500, "printer jammed")

	fe, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, Application, fe.Kind)
	assert.Equal(t, 500, fe.Status)
	assert.Equal(t, "printer jammed", Message(err))
}

func TestWithOpKeepsSentinelIdentity(t *testing.T) {
	err := WithOp("print", ErrNotConnected)

	assert.ErrorIs(t, err, ErrNotConnected)
	assert.NotErrorIs(t, err, ErrNoDocument)
	assert.True(t, Is(err, Precondition))

	fe, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, "print", fe.Op)
	assert.Empty(t, ErrNotConnected.Op, "sentinel must not be mutated")
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.False(t, Is(nil, Precondition))
	assert.Equal(t, "", Message(nil))
	assert.Equal(t, "plain", Message(errors.New("plain")))
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("submit: %w", NewPrecondition("submit", "PDF has no pages"))

	assert.Equal(t, Precondition, KindOf(err))
	assert.Equal(t, "PDF has no pages", Message(err))
}
