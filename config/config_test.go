package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	var c Config
	c.JWT = JWTConfig{
		AccessSecret:    "access",
		RefreshSecret:   "refresh",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	}
	c.Auth.BcryptCost = 10
	c.Auth.OTPLength = 6
	c.Auth.PasswordResetTTL = time.Hour
	c.Cleanup.Enabled = true
	c.Cleanup.Interval = 24 * time.Hour
	c.Cleanup.PendingAge = 24 * time.Hour
	return c
}

func TestInitConfig(t *testing.T) {
	cfg, err := InitConfig()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTokenTTL)
	assert.Equal(t, 168*time.Hour, cfg.JWT.RefreshTokenTTL)
	assert.True(t, cfg.Auth.EmailVerificationEnabled)
	assert.Equal(t, 6, cfg.Auth.OTPLength)
	assert.Equal(t, "email_jobs", cfg.Messaging.RabbitMQ.EmailQueue)
	assert.Equal(t, 24*time.Hour, cfg.Cleanup.PendingAge)
}

func TestInitConfigEnvOverride(t *testing.T) {
	t.Setenv("JWT_ISSUER", "env-issuer")

	cfg, err := InitConfig()
	require.NoError(t, err)
	assert.Equal(t, "env-issuer", cfg.JWT.Issuer)
}

func TestValidate(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		c := validConfig()
		assert.NoError(t, c.Validate())
	})

	t.Run("SameSecrets", func(t *testing.T) {
		c := validConfig()
		c.JWT.RefreshSecret = c.JWT.AccessSecret
		assert.Error(t, c.Validate())
	})

	t.Run("MissingSecret", func(t *testing.T) {
		c := validConfig()
		c.JWT.AccessSecret = ""
		assert.Error(t, c.Validate())
	})

	t.Run("WeakBcryptCost", func(t *testing.T) {
		c := validConfig()
		c.Auth.BcryptCost = 4
		assert.Error(t, c.Validate())
	})

	t.Run("CleanupDisabledIgnoresInterval", func(t *testing.T) {
		c := validConfig()
		c.Cleanup.Enabled = false
		c.Cleanup.Interval = 0
		assert.NoError(t, c.Validate())
	})
}
