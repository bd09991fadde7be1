package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/ghostkey/keymap"
	"github.com/Alia5/ghostkey/platform"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"trace":   LevelTrace,
		"DEBUG":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"info":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestSetupLoggerSplitsStreams(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger, closers, err := setupLogger(&stdout, &stderr, "debug", "", "text")
	require.NoError(t, err)
	assert.Empty(t, closers)

	logger.Debug("debug line")
	logger.Info("info line")
	logger.Error("error line")

	assert.Contains(t, stdout.String(), "debug line")
	assert.Contains(t, stdout.String(), "info line")
	assert.NotContains(t, stdout.String(), "error line")
	assert.Contains(t, stderr.String(), "error line")
	assert.NotContains(t, stderr.String(), "info line")
}

func TestSetupLoggerJSONAndTrace(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger, _, err := setupLogger(&stdout, &stderr, "trace", "", "json")
	require.NoError(t, err)

	logger.Log(t.Context(), LevelTrace, "tap event", "key", "A")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &rec))
	assert.Equal(t, "TRACE", rec["level"])
	assert.Equal(t, "tap event", rec["msg"])
	assert.Equal(t, "A", rec["key"])
}

func TestSetupLoggerFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	path := filepath.Join(t.TempDir(), "ghostkey.log")
	logger, closers, err := setupLogger(&stdout, &stderr, "info", path, "text")
	require.NoError(t, err)
	require.Len(t, closers, 1)

	logger.Info("to file only")
	logger.Warn("to both")
	for _, c := range closers {
		require.NoError(t, c.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file only")
	assert.Contains(t, string(data), "to both")
	assert.NotContains(t, stderr.String(), "to file only")
	assert.Contains(t, stderr.String(), "to both")
	assert.Empty(t, stdout.String())
}

func TestRawLogger(t *testing.T) {
	var buf bytes.Buffer
	r := &rawLogger{w: &buf, now: func() time.Time { return time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC) }}

	r.Posted(platform.KeyEvent{
		Code:     keymap.KeyH,
		Down:     true,
		Flags:    platform.FlagShift,
		Text:     platform.TextOf('H'),
		UserData: platform.SentinelTag,
	})
	r.Intercepted(platform.TapEvent{Kind: platform.KindKeyDown, Code: keymap.KeyEscape}, platform.Swallow)
	r.Intercepted(platform.TapEvent{Kind: platform.KindTapDisabledByTimeout}, platform.Pass)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `2026/01/02 15:04:05.000 OUT down key=0x04 flags=0x00020000 text=[0048] "H" tag=0x47484b5953594e54`, lines[0])
	assert.Equal(t, `2026/01/02 15:04:05.000 IN  keydown key=0x35 flags=0x00000000 repeat=false tag=0x0 verdict=swallow`, lines[1])
	assert.Equal(t, `2026/01/02 15:04:05.000 IN  tap-disabled-timeout verdict=pass`, lines[2])
}

func TestRawLoggerNil(t *testing.T) {
	r := NewRaw(nil)
	assert.NotPanics(t, func() {
		r.Posted(platform.KeyEvent{Code: keymap.KeyA, Down: true})
		r.Intercepted(platform.TapEvent{}, platform.Pass)
	})
}
