package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ALLOW_CONCURRENT_ATTEMPTS", "")
	t.Setenv("EXPIRY_SWEEP_INTERVAL_SECONDS", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("EXPIRY_GRACE_SECONDS", "")

	cfg := Load()

	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.True(t, cfg.AllowConcurrentAttempts)
	assert.Equal(t, 30*time.Second, cfg.ExpirySweepInterval)
	assert.Equal(t, 2*time.Second, cfg.ExpiryGrace)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ALLOW_CONCURRENT_ATTEMPTS", "false")
	t.Setenv("EXPIRY_SWEEP_INTERVAL_SECONDS", "0")
	t.Setenv("STORE_DRIVER", StoreDriverMemory)
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg := Load()

	assert.False(t, cfg.AllowConcurrentAttempts)
	assert.Zero(t, cfg.ExpirySweepInterval)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestGetEnvBoolFallsBackOnGarbage(t *testing.T) {
	t.Setenv("SOME_FLAG", "maybe")
	assert.True(t, getEnvBool("SOME_FLAG", true))
}
