package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestInitWithFormatJSON(t *testing.T) {
	var buf bytes.Buffer
	InitWithFormat("info", "json", &buf)
	defer Init("info")

	With("kind", "DeviceGroup").Info("step finished", "step", "create-thing-group")
	Debug("dropped")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "step finished", entry["msg"])
	assert.Equal(t, "DeviceGroup", entry["kind"])
	assert.Equal(t, "create-thing-group", entry["step"])
	assert.NotContains(t, buf.String(), "dropped")
}
