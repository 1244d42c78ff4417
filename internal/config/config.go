package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string

	AdminPassword     string
	AdminPasswordHash string

	CaptchaProvider  string
	CaptchaSecret    string
	CaptchaVerifyURL string
	CaptchaTimeout   time.Duration

	CheckInInterval     time.Duration
	CheckInReminderLead time.Duration
	CheckInGrace        time.Duration
	WorkerInterval      time.Duration
	WorkerBatchSize     int

	HistorySampleSize      int
	DefaultWaitPerPosition time.Duration
	StatsWindow            time.Duration

	PushProvider        string
	PushWebhookURL      string
	PushWebhookToken    string
	FirebaseCredentials string
	AMQPURL             string
	AMQPQueue           string

	RedisAddr     string
	RedisPassword string
	RedisChannel  string

	CORSAllowedOrigin      string
	RateLimitPerMinute     int
	RateLimitBurst         int
	JoinRateLimitPerMinute int
	JoinRateLimitBurst     int
}

// Load reads the environment, after merging an optional .env file from the working directory.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:        readString("PORT", "8080"),
		DatabaseURL: os.Getenv("DB_DSN"),

		AdminPassword:     os.Getenv("ADMIN_PASSWORD"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),

		CaptchaProvider:  strings.ToLower(readString("CAPTCHA_PROVIDER", "recaptcha")),
		CaptchaSecret:    os.Getenv("RECAPTCHA_SECRET_KEY"),
		CaptchaVerifyURL: os.Getenv("RECAPTCHA_VERIFY_URL"),
		CaptchaTimeout:   readDurationSeconds("CAPTCHA_TIMEOUT_SECONDS", 5),

		CheckInInterval:     readDurationSeconds("CHECKIN_INTERVAL_SECONDS", 600),
		CheckInReminderLead: readDurationSeconds("CHECKIN_REMINDER_LEAD_SECONDS", 120),
		CheckInGrace:        readDurationSeconds("CHECKIN_GRACE_SECONDS", 300),
		WorkerInterval:      readDurationSeconds("WORKER_INTERVAL_SECONDS", 30),
		WorkerBatchSize:     readInt("WORKER_BATCH_SIZE", 100),

		HistorySampleSize:      readInt("HISTORY_SAMPLE_SIZE", 10),
		DefaultWaitPerPosition: time.Duration(readInt("DEFAULT_WAIT_MINUTES_PER_POSITION", 5)) * time.Minute,
		StatsWindow:            time.Duration(readInt("STATS_WINDOW_HOURS", 24)) * time.Hour,

		PushProvider:        strings.ToLower(readString("PUSH_PROVIDER", "log")),
		PushWebhookURL:      os.Getenv("PUSH_WEBHOOK_URL"),
		PushWebhookToken:    os.Getenv("PUSH_WEBHOOK_TOKEN"),
		FirebaseCredentials: os.Getenv("FIREBASE_ADMIN_CREDENTIALS"),
		AMQPURL:             os.Getenv("AMQP_URL"),
		AMQPQueue:           readString("AMQP_QUEUE", "waitlist.push"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisChannel:  readString("REDIS_CHANNEL", "waitlist:events"),

		CORSAllowedOrigin:      readString("CORS_ALLOWED_ORIGIN", "*"),
		RateLimitPerMinute:     readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:         readInt("RATE_LIMIT_BURST", 30),
		JoinRateLimitPerMinute: readInt("JOIN_RATE_LIMIT_PER_MIN", 10),
		JoinRateLimitBurst:     readInt("JOIN_RATE_LIMIT_BURST", 5),
	}
}

func readString(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
