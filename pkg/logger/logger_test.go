package logger

import (
	"path/filepath"
	"testing"

	"tutor_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { SetLevel("", "release") })

	SetLevel("", "debug")
	assert.Equal(t, zapcore.DebugLevel, Level())

	SetLevel("", "release")
	assert.Equal(t, zapcore.InfoLevel, Level())

	SetLevel("warn", "debug")
	assert.Equal(t, zapcore.WarnLevel, Level())

	SetLevel("verbose", "release")
	assert.Equal(t, zapcore.InfoLevel, Level())
}

func TestInitLoggerWritesToConfiguredFile(t *testing.T) {
	t.Cleanup(func() { SetLevel("", "release") })
	file := filepath.Join(t.TempDir(), "tutor.log")

	cfg := &config.Config{}
	cfg.Server.Mode = "release"
	cfg.Tracing.ServiceName = "tutor-test"
	cfg.Log = config.LogConfig{Level: "error", File: file, MaxSizeMB: 1}

	InitLogger(cfg)
	assert.Equal(t, zapcore.ErrorLevel, Level())
	assert.True(t, Log.Core().Enabled(zapcore.ErrorLevel))
	assert.False(t, Log.Core().Enabled(zapcore.InfoLevel))
}
