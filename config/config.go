package config

import (
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type Config struct {
	Token         string
	Port          string
	DBPath        string
	RedisAddr     string
	WebhookURL    string
	WebhookSecret string
	AdminID       int64
	SessionTTL    time.Duration
}

func NewConfig() (*Config, error) {
	// .env is optional, real env vars win either way
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./hatshop.db"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	var adminID int64
	if v := os.Getenv("ADMIN_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, err
		}
		adminID = id
	}

	sessionTTL := 30 * time.Minute
	if v := os.Getenv("SESSION_TTL_MINUTES"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		sessionTTL = time.Duration(m) * time.Minute
	}

	webhookURL := os.Getenv("WEBHOOK_URL")
	// Telegram only allows [A-Za-z0-9_-] in the secret, so the bot token
	// (which always carries a ':') cannot be reused here.
	webhookSecret := os.Getenv("WEBHOOK_SECRET")
	if webhookURL != "" && webhookSecret == "" {
		webhookSecret = uuid.New().String()
	}

	return &Config{
		Token:         os.Getenv("TELEGRAM_BOT_TOKEN"),
		Port:          port,
		DBPath:        dbPath,
		RedisAddr:     redisAddr,
		WebhookURL:    webhookURL,
		WebhookSecret: webhookSecret,
		AdminID:       adminID,
		SessionTTL:    sessionTTL,
	}, nil
}
