package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestPrettyHandler_WritesAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	logger.With("component", "storage").WithGroup("snapshot").Info("saved", "keys", 3)
	logger.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "saved")
	assert.Contains(t, out, " component=storage")
	assert.NotContains(t, out, "snapshot.component")
	assert.Contains(t, out, "snapshot.keys=3")
	assert.NotContains(t, out, "hidden")
	assert.NotContains(t, out, "\033[")
}
