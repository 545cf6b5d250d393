package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestRing_KeepsLastEntries(t *testing.T) {
	ring := NewRing(3, zapcore.InfoLevel)
	logger := zap.New(ring).With(zap.String("tenant", "acme"))

	logger.Debug("dropped")
	for _, m := range []string{"one", "two", "three", "four"} {
		logger.Info(m, zap.Int("n", len(m)))
	}

	entries := ring.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "two", entries[0].Message)
	assert.Equal(t, "four", entries[2].Message)
	assert.Equal(t, "acme", entries[2].Fields["tenant"])
	assert.EqualValues(t, 4, entries[2].Fields["n"])
	assert.Equal(t, "info", entries[2].Level)
}

func TestRing_PartiallyFilled(t *testing.T) {
	ring := NewRing(5, zapcore.DebugLevel)
	zap.New(ring).Warn("only")
	entries := ring.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "warn", entries[0].Level)
}

func TestNew_WithRing(t *testing.T) {
	logger, ring, err := New(Config{Level: "info", Encoding: "json", RingSize: 2})
	require.NoError(t, err)
	require.NotNil(t, ring)
	logger.Info("hello")
	assert.Len(t, ring.Entries(), 1)

	_, _, err = New(Config{Level: "loud"})
	assert.Error(t, err)
}
