package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "doorsync.db", cfg.DBPath)
	assert.Equal(t, 24*time.Hour, cfg.AccessTokenTTL)
}

func TestApplyEnvOverridesDefaults(t *testing.T) {
	t.Setenv("DOORSYNC_ADDR", ":9999")
	t.Setenv("DOORSYNC_ENROLL_KEY", "env-key")
	t.Setenv("DOORSYNC_TOKEN_TTL", "30m")

	cfg := &Config{}
	cfg.LoadDefaults()
	cfg.applyEnv()

	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, "env-key", cfg.EnrollKey)
	assert.Equal(t, 30*time.Minute, cfg.AccessTokenTTL)
}

func TestParseFlagsOverridesEnv(t *testing.T) {
	t.Setenv("DOORSYNC_ADDR", ":9999")

	cfg := &Config{}
	cfg.LoadDefaults()
	cfg.applyEnv()
	cfg.parseFlags([]string{"-a", ":7777", "-t", "1h"})

	assert.Equal(t, ":7777", cfg.Addr)
	assert.Equal(t, time.Hour, cfg.AccessTokenTTL)
}

func TestParseFlagsKeepsUnsetValues(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()
	cfg.parseFlags([]string{"-d", "/var/lib/doorsync/doorsync.db"})

	assert.Equal(t, "/var/lib/doorsync/doorsync.db", cfg.DBPath)
	assert.Equal(t, ":8080", cfg.Addr)
}
