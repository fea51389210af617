package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStructured_ImplementsLogger(t *testing.T) {
	var log Logger = NewStructured("debug", "json")
	require.NotNil(t, log)

	// Entries at every level with and without fields must not panic.
	log.Debug("debug entry", map[string]interface{}{"k": "v"})
	log.Info("info entry", nil)
	log.Warn("warn entry", map[string]interface{}{"attempt": 2})
	log.Error("error entry", nil)
}

func TestWith_ReturnsChildLogger(t *testing.T) {
	log := NewNoOpLogger()

	child := log.With(map[string]interface{}{"component": "state-store"})

	require.NotNil(t, child)
	assert.NotSame(t, log, child)
	child.Info("child entry", nil)
}

func TestWithError_ReturnsChildLogger(t *testing.T) {
	log := NewNoOpLogger()

	child := log.WithError(errors.New("boom"))

	require.NotNil(t, child)
	child.Error("failure entry", map[string]interface{}{"sessionId": "s1"})
}

func TestNewTestLogger_WritesThroughTestingT(t *testing.T) {
	log := NewTestLogger(t)
	log.Info("captured by the test runner", map[string]interface{}{"ok": true})
}
