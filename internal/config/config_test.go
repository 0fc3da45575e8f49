package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("QR_KEY", "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvLocal, cfg.Env)
	assert.Equal(t, "mysql", cfg.DB.Driver)
	assert.Equal(t, "4gZNmQXk", cfg.Beach.ID)
	assert.Equal(t, "Lido 1", cfg.Beach.Name)
	assert.Equal(t, "2024-05-27", cfg.Occupancy.Origin)
	assert.Equal(t, 140, cfg.Occupancy.Days)
	assert.Equal(t, "EUR", cfg.Payment.Currency)
	assert.Equal(t, 10*time.Second, cfg.Payment.Timeout)
	assert.Equal(t, time.Hour, cfg.Session.TTL)
	assert.True(t, cfg.Cache.Caches("get"))
	assert.False(t, cfg.Cache.Caches("POST"))
}

func TestLoadMissingSecret(t *testing.T) {
	t.Setenv("QR_KEY", "00")
	t.Setenv("SESSION_SECRET", "")
	require.NoError(t, os.Unsetenv("SESSION_SECRET"))

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadOrigin(t *testing.T) {
	setRequired(t)
	t.Setenv("OCCUPANCY_ORIGIN", "27/05/2024")

	_, err := Load()
	assert.Error(t, err)
}

func TestIsAdmin(t *testing.T) {
	setRequired(t)
	t.Setenv("ADMIN_EMAILS", " Boss@Lido.it ,ops@lido.it")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsAdmin("boss@lido.it"))
	assert.True(t, cfg.IsAdmin("OPS@lido.it "))
	assert.False(t, cfg.IsAdmin("guest@lido.it"))
	assert.False(t, cfg.IsAdmin(""))
}

func TestRateLimitNormalize(t *testing.T) {
	t.Parallel()

	rl := RateLimitConfig{Capacity: 0, RefillTokens: 0, RefillInterval: 2 * time.Second, TTL: time.Second}
	rl.normalize()

	assert.Equal(t, 1, rl.Capacity)
	assert.Equal(t, 1, rl.RefillTokens)
	assert.Equal(t, 10*time.Second, rl.TTL)
}

func TestRedisAddress(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "cache:6380", RedisConfig{Addr: "localhost:6379", Host: "cache", Port: "6380"}.Address())
	assert.Equal(t, "localhost:6379", RedisConfig{Addr: "localhost:6379", Host: "cache"}.Address())
}
