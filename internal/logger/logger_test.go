package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedLogger(buf *bytes.Buffer, cfg Config) *Logger {
	l := New(buf, cfg)
	l.now = func() time.Time { return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC) }

	return l
}

// Expectation: Every level should render its canonical name.
func Test_Level_String_Table(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{TraceLevel, "TRACE"},
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{Level(999), "UNKNOWN"},
	}

	for _, tt := range tests {
		require.Equal(t, tt.expected, tt.level.String())
	}
}

// Expectation: Level names should parse case-insensitively with an info fallback.
func Test_ParseLevel_Success(t *testing.T) {
	require.Equal(t, DebugLevel, ParseLevel("debug"))
	require.Equal(t, WarnLevel, ParseLevel(" Warning "))
	require.Equal(t, InfoLevel, ParseLevel("bogus"))
}

// Expectation: Pretty output should contain the level, component, message and sorted fields.
func Test_Logger_Pretty_Success(t *testing.T) {
	var buf bytes.Buffer

	l := fixedLogger(&buf, Config{Level: InfoLevel, Component: "pack"})
	l.Warn("asset missing", String("path", "a.txt"), Int("line", 3))

	require.Equal(t, "2025-01-01 12:00:00 [WARN] pack: asset missing {line=3, path=a.txt}\n", buf.String())
}

// Expectation: Messages below the configured level should be dropped.
func Test_Logger_LevelFilter_Success(t *testing.T) {
	var buf bytes.Buffer

	l := fixedLogger(&buf, Config{Level: WarnLevel})
	l.Info("hidden")
	l.Debug("hidden")
	l.Error("shown")

	require.Equal(t, 1, strings.Count(buf.String(), "\n"))
	require.Contains(t, buf.String(), "shown")
}

// Expectation: JSON output should be a decodable entry.
func Test_Logger_JSON_Success(t *testing.T) {
	var buf bytes.Buffer

	l := fixedLogger(&buf, Config{Level: InfoLevel, JSON: true})
	l.With("index").Error("walk failed", Err(errors.New("boom")))

	var entry Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "ERROR", entry.Level)
	require.Equal(t, "index", entry.Component)
	require.Equal(t, "boom", entry.Fields["error"])
}

// Expectation: A no-op logger should never write.
func Test_Logger_Nop_Success(t *testing.T) {
	l := Nop()
	require.False(t, l.Enabled(ErrorLevel))
	l.Error("nothing")
}
