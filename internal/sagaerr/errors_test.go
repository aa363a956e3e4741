package sagaerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfClassifiesWrappedErrors(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(Validation(errors.New("bad input"))))
	assert.Equal(t, KindNotFound, KindOf(NotFound(errors.New("missing"))))
	assert.Equal(t, KindTransient, KindOf(Transient(errors.New("timeout"))))
	assert.Equal(t, KindTerminal, KindOf(Terminal(errors.New("invariant broken"))))
}

func TestKindOfDefaultsToTerminalForPlainErrors(t *testing.T) {
	assert.Equal(t, KindTerminal, KindOf(errors.New("unclassified")))
}

func TestIsMatchesClassifiedKind(t *testing.T) {
	err := Transient(errors.New("db down"))
	assert.True(t, Is(err, KindTransient))
	assert.False(t, Is(err, KindValidation))
}

func TestUnwrapExposesUnderlyingError(t *testing.T) {
	underlying := errors.New("root cause")
	wrapped := Terminal(underlying)
	assert.ErrorIs(t, wrapped, underlying)
}
