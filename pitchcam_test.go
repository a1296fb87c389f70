package main

import (
	"bytes"
	"flag"
	"testing"

	"pitchcam/config"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyFlagOverrides(t *testing.T) {
	t.Cleanup(viper.Reset)

	cfg, err := config.Load("")
	require.NoError(t, err)

	require.NoError(t, flag.Set("model", "smoothed"))
	require.NoError(t, flag.Set("kalman", "true"))
	require.NoError(t, flag.Set("device", "/dev/video2"))
	t.Cleanup(func() {
		flag.Set("model", "")
		flag.Set("kalman", "false")
		flag.Set("device", "")
	})

	applyFlagOverrides(cfg, map[string]bool{"model": true, "kalman": true, "device": true})

	assert.Equal(t, "smoothed", cfg.Speed.Model)
	assert.True(t, cfg.Tracking.Kalman)
	assert.Equal(t, "/dev/video2", cfg.Device)
	// Untouched settings keep their loaded values
	assert.Equal(t, ":5000", cfg.Addr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zerolog.TraceLevel, parseLevel("TRACE"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zerolog.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("bogus"))
}

func TestComponentLevel(t *testing.T) {
	assert.Equal(t, zerolog.ErrorLevel, componentLevel("ERROR"))
	assert.Equal(t, zerolog.ErrorLevel, componentLevel("HTTP_ERROR"))
	assert.Equal(t, zerolog.InfoLevel, componentLevel("PERF"))
	assert.Equal(t, zerolog.InfoLevel, componentLevel("SESSION"))
	assert.Equal(t, zerolog.DebugLevel, componentLevel("BLOB"))
	assert.Equal(t, zerolog.DebugLevel, componentLevel("KALMAN"))
}

func TestDebugLogger(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDebugLogger(&buf, zerolog.InfoLevel, true)

	dl.debugMsg("SESSION", "Session started", "abc-123")
	dl.debugMsg("BLOB", "filtered out at info level")

	out := buf.String()
	assert.Contains(t, out, "Session started")
	assert.Contains(t, out, "component=SESSION")
	assert.Contains(t, out, "session=abc-123")
	assert.NotContains(t, out, "filtered out")
}
