package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, ":5001", cfg.HTTPAddr)
	assert.Equal(t, 5*time.Second, cfg.CacheTTL)
	assert.Equal(t, 2*time.Second, cfg.OutboxPollInterval)
	assert.Equal(t, 20, cfg.OutboxBatchSize)
	assert.Equal(t, 5, cfg.OutboxMaxAttempts)
	assert.Equal(t, 2, cfg.ConflictMaxRetries)
	assert.Equal(t, 5*time.Second, cfg.CommitCheckTimeout)
	assert.Equal(t, 10, cfg.DBMaxConns)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.TelegramEnabled())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("DB_DSN", "postgres://localhost/slots")
	t.Setenv("ENV", "production")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("CONFLICT_MAX_RETRIES", "0")
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-100200300")
	t.Setenv("CORS_ALLOWED_ORIGINS", " http://localhost:5173, https://slots.example.com ,")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, 0, cfg.ConflictMaxRetries)
	assert.Equal(t, int64(-100200300), cfg.TelegramChatID)
	assert.True(t, cfg.TelegramEnabled())
	assert.Equal(t, []string{"http://localhost:5173", "https://slots.example.com"}, cfg.CORSAllowedOrigins)
}

func TestFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing secret", map[string]string{"STORE_DRIVER": "memory"}, "JWT_SECRET"},
		{"missing dsn", map[string]string{"JWT_SECRET": "s"}, "DB_DSN"},
		{"unknown driver", map[string]string{"JWT_SECRET": "s", "STORE_DRIVER": "sqlite"}, "STORE_DRIVER"},
		{"bad cors origin", map[string]string{"JWT_SECRET": "s", "STORE_DRIVER": "memory", "CORS_ALLOWED_ORIGINS": "localhost:5173"}, "CORS_ALLOWED_ORIGINS"},
		{"bad int", map[string]string{"JWT_SECRET": "s", "STORE_DRIVER": "memory", "OUTBOX_BATCH_SIZE": "many"}, "OUTBOX_BATCH_SIZE"},
		{"bad duration", map[string]string{"JWT_SECRET": "s", "STORE_DRIVER": "memory", "CACHE_TTL": "soon"}, "CACHE_TTL"},
		{"negative retries", map[string]string{"JWT_SECRET": "s", "STORE_DRIVER": "memory", "CONFLICT_MAX_RETRIES": "-1"}, "CONFLICT_MAX_RETRIES"},
		{"bad chat id", map[string]string{"JWT_SECRET": "s", "STORE_DRIVER": "memory", "TELEGRAM_CHAT_ID": "chat"}, "TELEGRAM_CHAT_ID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"JWT_SECRET", "STORE_DRIVER", "DB_DSN"} {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
