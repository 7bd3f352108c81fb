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
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
database:
  driver: memory
auth:
  enabled: false
scheduling:
  completed_blocks_slot: true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.True(t, cfg.Scheduling.CompletedBlocksSlot)
	assert.Equal(t, 30, cfg.Scheduling.DefaultDurationMinutes)
	assert.Equal(t, 15, cfg.Scheduling.MinDurationMinutes)
	assert.Equal(t, 240, cfg.Scheduling.MaxDurationMinutes)
	assert.Equal(t, 2*time.Second, cfg.Outbox.PollInterval)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: postgres
  host: db.internal
auth:
  enabled: true
`)
	t.Setenv("HMIS_DB_HOST", "override.internal")
	t.Setenv("HMIS_DB_PASSWORD", "s3cret")
	t.Setenv("HMIS_JWT_SECRET", "jwt-secret")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "override.internal", cfg.Database.Host)
	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, "jwt-secret", cfg.Auth.JWTSecret)
	assert.Contains(t, cfg.Database.DSN(), "host=override.internal")
}

func TestLoadConfig_RequiresJWTSecretWhenAuthEnabled(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: memory
auth:
  enabled: true
`)
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate_RejectsUnknownDriver(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{Driver: "mysql"},
		Scheduling: SchedulingConfig{
			MinDurationMinutes:     15,
			MaxDurationMinutes:     240,
			DefaultDurationMinutes: 30,
			SlotStepMinutes:        15,
		},
	}
	assert.Error(t, cfg.Validate())

	cfg.Database.Driver = "memory"
	assert.NoError(t, cfg.Validate())
}
