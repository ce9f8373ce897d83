package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kevinaaaquil/unilib/workers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"CONFIG_FILE", "ENV", "PORT", "MONGODB_URI", "MONGODB_DB", "JWT_SECRET", "JWT_TTL", "AUTH_EMAIL",
	"AUTH_PASSWORD", "LOG_LEVEL", "REDIS_ADDR", "REDIS_PASSWORD", "EVENT_STREAM", "SWEEP_OVERDUE_AT",
	"SWEEP_DUE_SOON_AT", "DUE_SOON_WINDOW", "POLICY_CURRENCY", "POLICY_LATE_FEE_PER_DAY",
	"POLICY_DAMAGE_RATE", "POLICY_LOSS_RATE", "METADATA_LOOKUP", "CORS_ORIGINS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "unilib", cfg.DBName)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 48*time.Hour, cfg.DueSoon)
	assert.Equal(t, workers.ClockTime{Hour: 0, Minute: 5}, cfg.OverdueClock)
	assert.Equal(t, workers.ClockTime{Hour: 9, Minute: 30}, cfg.DueSoonClock)
	assert.Equal(t, "IDR", cfg.Policy.Currency)
	assert.Equal(t, int64(5000), cfg.Policy.LateFeePerDay)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
mongoDB: library
redisAddr: localhost:6379
sweepOverdueAt: "01:15"
metadataLookup: true
policy:
  currency: usd
  lateFeePerDay: 2500
  damageFeeRate: 0.5
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9100")
	t.Setenv("POLICY_LOSS_RATE", "0.75")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, "library", cfg.DBName)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, workers.ClockTime{Hour: 1, Minute: 15}, cfg.OverdueClock)
	assert.True(t, cfg.MetadataLookup)
	assert.Equal(t, "USD", cfg.Policy.Currency)
	assert.Equal(t, int64(2500), cfg.Policy.LateFeePerDay)
	assert.Equal(t, 0.5, cfg.Policy.DamageFeeRate)
	assert.Equal(t, 0.75, cfg.Policy.LostBookFeeRate)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := map[string]map[string]string{
		"weak secret in production": {"ENV": "production", "JWT_SECRET": "short"},
		"bad clock":                 {"SWEEP_DUE_SOON_AT": "25:00"},
		"bad ttl":                   {"JWT_TTL": "forever"},
		"bad rate":                  {"POLICY_DAMAGE_RATE": "1.5"},
		"unparsable fee":            {"POLICY_LATE_FEE_PER_DAY": "lots"},
		"bad currency":              {"POLICY_CURRENCY": "RUPIAH"},
		"bad bool":                  {"METADATA_LOOKUP": "sometimes"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}

	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestProductionAcceptsStrongSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestLoadCORSOrigins(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.CORSOrigins)

	t.Setenv("CORS_ORIGINS", " https://library.uni.test/ ,,https://admin.uni.test")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://library.uni.test", "https://admin.uni.test"}, cfg.CORSOrigins)
}
