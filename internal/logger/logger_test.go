package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn", false)
	require.Equal(t, zerolog.WarnLevel, log.GetLevel())

	log.Info().Msg("dropped")
	require.Zero(t, buf.Len())

	log.Warn().Str("namespace", "default_events").Msg("kept")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "kept", entry["message"])
	require.Equal(t, "default_events", entry["namespace"])
	require.Contains(t, entry, "time")
}

func TestUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "loud", false)
	require.Equal(t, zerolog.InfoLevel, log.GetLevel())
}
