package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New("warn", "json", &buf)

	log.Info().Msg("hidden")
	log.Warn().Str("symbol", "600519").Msg("partition skipped")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "600519", entry["symbol"])
	assert.Equal(t, "partition skipped", entry["message"])
	assert.Equal(t, "quantlab", entry["app"])
	assert.Contains(t, entry, "time")
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	log := New("info", "console", &buf)
	log.Info().Msg("views refreshed")

	assert.Contains(t, buf.String(), "views refreshed")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}
