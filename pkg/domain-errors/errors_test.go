package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	base := errors.New("row missing")
	err := fmt.Errorf("load: %w", Wrap(base, CodeNotFound, "submission not found"))

	assert.True(t, HasCode(err, CodeNotFound))
	assert.False(t, HasCode(err, CodeConflict))
	assert.ErrorIs(t, err, base)
	assert.False(t, HasCode(base, CodeNotFound))
}

func TestAs(t *testing.T) {
	err := New(CodePreflightFailed, "document failed preflight").WithDetails([]string{"buyer 1: missing credential"})

	de, ok := As(fmt.Errorf("submit: %w", err))
	require.True(t, ok)
	assert.Equal(t, CodePreflightFailed, de.Code)
	assert.Equal(t, []string{"buyer 1: missing credential"}, de.Details)

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}
