package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestLoggerIncludesServiceAndStack(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "bucket-test", "debug")
	log.Error().Stack().Err(errors.New("boom")).Msg("write failed")

	var payload map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &payload))
	require.Equal(t, "bucket-test", payload["service"])
	require.Equal(t, "error", payload["level"])
	require.Equal(t, "boom", payload["error"])
	require.Contains(t, payload, "stack")
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "bucket-test", "warn")
	log.Info().Msg("hidden")
	require.Zero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	require.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	require.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
}
