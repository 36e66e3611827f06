package server

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLogCoreJSONRespectsLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "info"
	cfg.LogFormat = "json"

	var buf bytes.Buffer
	core, err := newLogCore(cfg, zapcore.AddSync(&buf))
	require.NoError(t, err)
	log := zap.New(core).Sugar()

	log.Debugw("hidden")
	log.Infow("session joined", "id", "ABC")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "session joined", line["msg"])
	assert.Equal(t, "ABC", line["id"])
	assert.Equal(t, "info", line["level"])
}

func TestLogCoreRejectsBadSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "loud"
	_, err := newLogCore(cfg, zapcore.AddSync(&bytes.Buffer{}))
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.LogFormat = "xml"
	_, err = newLogCore(cfg, zapcore.AddSync(&bytes.Buffer{}))
	assert.Error(t, err)
}

func TestInitLoggerWritesRollingFile(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	cfg := DefaultConfig()
	cfg.LogFile = filepath.Join(t.TempDir(), "worldsync.log")
	cfg.LogFormat = "json"
	require.NoError(t, InitLogger(cfg))

	Log.Infow("world running", "tickRateHz", 50)
	SyncLogger()

	b, err := os.ReadFile(cfg.LogFile)
	require.NoError(t, err)
	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(b), &line))
	assert.Equal(t, "world running", line["msg"])
	assert.Equal(t, "worldsync", line["logger"])
	assert.EqualValues(t, 50, line["tickRateHz"])
}

func TestInitLoggerRejectsUnknownLevel(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	cfg := DefaultConfig()
	cfg.LogFile = filepath.Join(t.TempDir(), "worldsync.log")
	cfg.LogLevel = "verbose"
	assert.Error(t, InitLogger(cfg))
	assert.Same(t, prev, Log)
}
