package config

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Telegram rejects webhook secrets outside this alphabet.
var secretAlphabet = regexp.MustCompile(`^[A-Za-z0-9_-]{1,256}$`)

func TestDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "DB_PATH", "REDIS_ADDR", "SESSION_TTL_MINUTES", "ADMIN_ID", "WEBHOOK_URL", "WEBHOOK_SECRET"} {
		t.Setenv(k, "")
	}
	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "./hatshop.db", cfg.DBPath)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	// webhook mode off, no secret generated
	assert.Empty(t, cfg.WebhookURL)
	assert.Empty(t, cfg.WebhookSecret)
}

func TestWebhookSecretNeverTheToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123456:AAE-abcDEFghiJKlmNoPQRstuVwxyZ")
	t.Setenv("WEBHOOK_URL", "https://bot.example.com")
	t.Setenv("WEBHOOK_SECRET", "")

	t.Run("generated when unset", func(t *testing.T) {
		cfg, err := NewConfig()
		require.NoError(t, err)

		require.NotEmpty(t, cfg.WebhookSecret)
		assert.NotEqual(t, cfg.Token, cfg.WebhookSecret)
		assert.Regexp(t, secretAlphabet, cfg.WebhookSecret)
	})

	t.Run("taken from env", func(t *testing.T) {
		t.Setenv("WEBHOOK_SECRET", "my_secret-42")
		cfg, err := NewConfig()
		require.NoError(t, err)

		assert.Equal(t, "my_secret-42", cfg.WebhookSecret)
	})
}

func TestAdminIDParsing(t *testing.T) {
	t.Setenv("ADMIN_ID", "424242")
	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, int64(424242), cfg.AdminID)

	t.Setenv("ADMIN_ID", "not-a-number")
	_, err = NewConfig()
	assert.Error(t, err)
}
