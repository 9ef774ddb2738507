package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOriginRegistry(t *testing.T) {
	reg := NewOriginRegistry([]string{"https://app.example.com", "https://staging.example.com"})

	t.Run("allows a known origin", func(t *testing.T) {
		assert.True(t, reg.Allowed("https://app.example.com"))
	})

	t.Run("rejects an unknown origin", func(t *testing.T) {
		assert.False(t, reg.Allowed("https://evil.example.com"))
	})

	t.Run("Set replaces contents", func(t *testing.T) {
		reg.Set([]string{"https://new.example.com"})
		assert.False(t, reg.Allowed("https://app.example.com"))
		assert.True(t, reg.Allowed("https://new.example.com"))
	})
}

func TestConfig_Initialize_DefaultsWhenEnvUnset(t *testing.T) {
	t.Setenv("LAUNCHDECK_PROJECT_ID", "")
	t.Setenv("HTTP_PORT", "")
	t.Setenv("LAUNCHDECK_ANTHROPIC_API_KEY", "")

	cfg, err := Initialize(t.TempDir())
	assert.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "us-central1", cfg.Target.Region)
	assert.False(t, cfg.Broker.BackupEnabled)
	assert.Equal(t, time.Hour, cfg.Retention.GraceThreshold)
}
