package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	for _, key := range []string{"PORT", "SERVER_MODE", "JWT_SECRET", "AI_PROVIDER", "ADMIN_EMAILS", "STORAGE_TYPE", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0644))
	return dir
}

func TestLoadConfig_DefaultsAndDurations(t *testing.T) {
	dir := writeConfig(t, `
server:
  port: "9090"
storage:
  type: minio
jwt:
  secret: dev
  admin_emails: " Ana@Example.com, ,luis@example.com"
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, "gemini", cfg.AI.Provider)
	assert.Equal(t, 60*time.Second, cfg.AI.Timeout)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), cfg.File)
	assert.Equal(t, "logs/tutor.log", cfg.Log.File)
	assert.True(t, cfg.Log.Console)
	assert.Empty(t, cfg.Log.Level)
	assert.Equal(t, 300*time.Second, cfg.Tutor.SubjectRefresh)
	assert.Equal(t, time.Hour, cfg.Tutor.GoalSweep)
	assert.Equal(t, 10, cfg.Tutor.XPPerExchange)
	assert.Equal(t, 600, cfg.RateLimit.MaxRequests)
	assert.Equal(t, []string{"ana@example.com", "luis@example.com"}, cfg.JWT.AdminEmailList())
}

func TestLoadConfig_ReleaseRequiresStrongSecret(t *testing.T) {
	dir := writeConfig(t, `
server:
  mode: release
storage:
  type: minio
jwt:
  secret: short
`)

	_, err := LoadConfig(dir)
	assert.Error(t, err)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(t.TempDir())
	assert.Error(t, err)
}
