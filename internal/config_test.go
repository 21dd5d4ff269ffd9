package internal_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/koopa0/system-design/14-gomoku-coordinator/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := internal.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, internal.DefaultCoordinatorConfig(), cfg.Coordinator)
	assert.Equal(t, time.Second, cfg.Watch.Interval)
	assert.Empty(t, cfg.NATS.URL)
	assert.Equal(t, "gomoku.outcomes", cfg.NATS.Subject)
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
log:
  level: debug
  format: json
coordinator:
  sweep_interval: 30s
  empty_room_grace: 45s
  chat_history: 20
nats:
  url: nats://localhost:4222
`)

	cfg, err := internal.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 30*time.Second, cfg.Coordinator.SweepInterval)
	assert.Equal(t, 45*time.Second, cfg.Coordinator.EmptyRoomGrace)
	assert.Equal(t, 20, cfg.Coordinator.ChatHistory)
	assert.Equal(t, time.Hour, cfg.Coordinator.WaitingRoomTTL, "unset fields keep defaults")
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)

	policy := cfg.Coordinator.EvictionPolicy()
	assert.Equal(t, 45*time.Second, policy.EmptyGrace)
	assert.Equal(t, time.Hour, policy.WaitingTTL)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("GOMOKU_PORT", "7000")
	t.Setenv("GOMOKU_NATS_URL", "nats://broker:4222")

	cfg, err := internal.LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "nats://broker:4222", cfg.NATS.URL)

	t.Setenv("GOMOKU_PORT", "not-a-port")
	_, err = internal.LoadConfig("")
	assert.Error(t, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"port out of range", "server:\n  port: 70000\n"},
		{"zero sweep interval", "coordinator:\n  sweep_interval: 0s\n"},
		{"negative chat history", "coordinator:\n  chat_history: -1\n"},
		{"empty subject with url", "nats:\n  url: nats://x\n  subject: \"\"\n"},
		{"malformed yaml", "server: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := internal.LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := internal.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
