package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, DefaultAPIBaseURL, cfg.APIBaseURL)
	assert.Equal(t, 30*time.Second, cfg.APITimeout)
	assert.Equal(t, "memory", cfg.StorageDriver)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, 5.0, cfg.Login.Burst)
	assert.Equal(t, 5.0, cfg.Login.PerMinute)
	assert.False(t, cfg.Login.TrustForwardedFor)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://localhost:8000/")
	t.Setenv("API_TIMEOUT", "0s")
	t.Setenv("STORAGE_DRIVER", "Postgres")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.APIBaseURL)
	assert.Zero(t, cfg.APITimeout)
	assert.Equal(t, "postgres", cfg.StorageDriver)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "sqlite")

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestFromEnvRejectsZeroLoginRate(t *testing.T) {
	t.Setenv("LOGIN_RATE_PER_MINUTE", "0")

	_, err := FromEnv()
	assert.Error(t, err)
}
