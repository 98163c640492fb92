package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHMACKey = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HMAC_KEY", testHMACKey)
	t.Setenv("APP_ENV", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SESSION_TTL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.AppEnv)
	assert.Equal(t, "todo_session", cfg.Session.CookieName)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 10, cfg.RateLimit.Capacity)
	assert.Equal(t, 1.0, cfg.RateLimit.RefillRate)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HMAC_KEY", testHMACKey)
	t.Setenv("APP_ENV", EnvProduction)
	t.Setenv("APP_HOST", "127.0.0.1")
	t.Setenv("APP_PORT", "9000")
	t.Setenv("SESSION_TTL", "90m")
	t.Setenv("LOGIN_RATE_CAPACITY", "3")
	t.Setenv("LOGIN_RATE_REFILL", "0.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr())
	assert.Equal(t, 90*time.Minute, cfg.Session.TTL)
	assert.Equal(t, 3, cfg.RateLimit.Capacity)
	assert.Equal(t, 0.5, cfg.RateLimit.RefillRate)
}

func TestLoad_MissingHMACKey(t *testing.T) {
	t.Setenv("HMAC_KEY", "")

	cfg, err := Load()

	assert.Nil(t, cfg)
	assert.ErrorIs(t, err, ErrMissingHMACKey)
}

func TestLoadDB_WithoutHMACKey(t *testing.T) {
	t.Setenv("HMAC_KEY", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_NAME", "todo_prod")

	db := LoadDB()

	assert.Equal(t, "db.internal", db.Host)
	assert.Equal(t, "todo_prod", db.Name)
	assert.Equal(t, "5432", db.Port)
}

func TestLoad_ShortHMACKey(t *testing.T) {
	t.Setenv("HMAC_KEY", "too-short")

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 bytes")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "app env", key: "APP_ENV", val: "qa"},
		{name: "session ttl", key: "SESSION_TTL", val: "tomorrow"},
		{name: "negative ttl", key: "SESSION_TTL", val: "-1h"},
		{name: "rate capacity", key: "LOGIN_RATE_CAPACITY", val: "ten"},
		{name: "worker count", key: "WORKER_COUNT", val: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HMAC_KEY", testHMACKey)
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestDBConfig_DSN(t *testing.T) {
	db := DBConfig{
		Host:     "db",
		Port:     "5432",
		User:     "app",
		Password: "secret",
		Name:     "todo",
		SSLMode:  "disable",
	}
	assert.Equal(t, "host=db port=5432 user=app password=secret dbname=todo sslmode=disable", db.DSN())

	db.URL = "postgres://app:secret@db:5432/todo"
	assert.Equal(t, "postgres://app:secret@db:5432/todo", db.DSN())
}

func TestConfig_StringMasksSecrets(t *testing.T) {
	t.Setenv("HMAC_KEY", testHMACKey)
	t.Setenv("DB_PASSWORD", "hunter2hunter2")

	cfg, err := Load()
	require.NoError(t, err)

	s := cfg.String()
	assert.NotContains(t, s, testHMACKey)
	assert.NotContains(t, s, "hunter2hunter2")
	assert.Contains(t, s, "key=***")
}
