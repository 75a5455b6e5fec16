package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"APP_ENV", "PORT", "STORE_DRIVER", "DATABASE_URL", "POSTGRES_ADDR", "POSTGRES_USER",
		"POSTGRES_PASSWORD", "POSTGRES_DB", "POSTGRES_SSLMODE", "JWT_SECRET", "JWT_ISSUER",
		"REDIS_ADDR", "RABBITMQ_URL", "RABBIT_URL", "RABBITMQ_EXCHANGE", "RABBIT_EXCHANGE",
		"OUTBOX_ENABLED", "RL_ENABLED", "WS_SEND_BUFFER", "WS_ALLOWED_ORIGINS", "CHAT_MAX_MESSAGE_LEN",
		"CACHE_USER_TTL", "MEMORY_USERS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_MemoryDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 32, cfg.WSSendBuffer)
	assert.Equal(t, 2000, cfg.ChatMaxLen)
	assert.Equal(t, "city.events", cfg.RabbitExchange)
	assert.Equal(t, 10*time.Minute, cfg.CacheUserTTL)
	assert.Empty(t, cfg.RedisAddr)
	assert.Nil(t, cfg.WSAllowedOrigins)
}

func TestLoad_PostgresFromParts(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("POSTGRES_ADDR", "db:5432")
	t.Setenv("POSTGRES_USER", "app")
	t.Setenv("POSTGRES_PASSWORD", "p@ss/word")
	t.Setenv("POSTGRES_DB", "delivery")
	t.Setenv("WS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://app:p%40ss%2Fword@db:5432/delivery?sslmode=disable", cfg.DBDSN)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.WSAllowedOrigins)
}

func TestLoad_FailFast(t *testing.T) {
	t.Run("missing_db", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("JWT_SECRET", "s3cret")
		_, err := Load()
		assert.ErrorContains(t, err, "missing database config")
	})

	t.Run("missing_jwt", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORE_DRIVER", "memory")
		_, err := Load()
		assert.ErrorContains(t, err, "JWT_SECRET")
	})

	t.Run("bad_driver", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORE_DRIVER", "mongo")
		t.Setenv("JWT_SECRET", "s3cret")
		_, err := Load()
		assert.ErrorContains(t, err, "STORE_DRIVER")
	})

	t.Run("rabbit_required_outside_dev", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("APP_ENV", "staging")
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("DATABASE_URL", "postgres://x@y/z")
		_, err := Load()
		assert.ErrorContains(t, err, "RABBITMQ_URL")
	})

	t.Run("invalid_bool_panics", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORE_DRIVER", "memory")
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("RL_ENABLED", "maybe")
		assert.Panics(t, func() { _, _ = Load() })
	})
}

func TestLoad_MemoryUsers(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("MEMORY_USERS", " a:customer:1 , ,b:admin:2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"a:customer:1", "b:admin:2"}, cfg.MemoryUsers)
}
