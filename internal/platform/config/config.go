// Package config builds all runtime configuration from the environment once,
// at startup. Nothing else in the codebase reads environment variables, so
// channel enablement and limits are explicit rather than re-derived ad hoc.
package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	TokenTTL      time.Duration
}

// Postgres configuration; empty DSN means in-memory stores.
type Postgres struct {
	DSN string
}

// Redis configuration; empty URL means the in-memory sequence allocator.
type Redis struct {
	URL          string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Upload limits for document submissions.
type Upload struct {
	Dir         string
	MaxFileSize int64
	MaxFiles    int
}

// EmailChannel configures the SMTP notification channel.
// Enabled is decided here, once, never inferred from credential presence at
// call sites.
type EmailChannel struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMSChannel configures the SMS notification channel.
type SMSChannel struct {
	Enabled    bool
	AccountSID string
	AuthToken  string
	From       string
	APIBase    string
}

// Notifications groups both channels plus dispatcher sizing.
type Notifications struct {
	Email     EmailChannel
	SMS       SMSChannel
	QueueSize int
}

// Audit configures the optional Kafka sink for lifecycle events.
type Audit struct {
	Brokers []string
	Topic   string
}

// Config is the root configuration object wired in main.
type Config struct {
	Server        Server
	Postgres      Postgres
	Redis         Redis
	Upload        Upload
	Notifications Notifications
	Audit         Audit
	// ReminderAge is how long a Draft may sit untouched before bulk
	// reminders pick it up.
	ReminderAge time.Duration
}

// FromEnv builds the Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:          envOr("ADMISSION_ADDR", ":8080"),
			JWTSigningKey: envOr("ADMISSION_JWT_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:     envOr("ADMISSION_JWT_ISSUER", "admission"),
			TokenTTL:      envDuration("ADMISSION_TOKEN_TTL", 7*24*time.Hour),
		},
		Postgres: Postgres{
			DSN: os.Getenv("ADMISSION_POSTGRES_DSN"),
		},
		Redis: Redis{
			URL:          os.Getenv("ADMISSION_REDIS_URL"),
			PoolSize:     envInt("ADMISSION_REDIS_POOL_SIZE", 10),
			DialTimeout:  envDuration("ADMISSION_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("ADMISSION_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("ADMISSION_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Upload: Upload{
			Dir:         envOr("ADMISSION_UPLOAD_DIR", "./uploads"),
			MaxFileSize: envInt64("ADMISSION_MAX_FILE_SIZE", 5*1024*1024),
			MaxFiles:    envInt("ADMISSION_MAX_FILES", 5),
		},
		Notifications: Notifications{
			Email: EmailChannel{
				Enabled:  envBool("ADMISSION_EMAIL_ENABLED", false),
				Host:     os.Getenv("ADMISSION_EMAIL_HOST"),
				Port:     envInt("ADMISSION_EMAIL_PORT", 587),
				Username: os.Getenv("ADMISSION_EMAIL_USER"),
				Password: os.Getenv("ADMISSION_EMAIL_PASS"),
				From:     envOr("ADMISSION_EMAIL_FROM", "noreply@admission.local"),
			},
			SMS: SMSChannel{
				Enabled:    envBool("ADMISSION_SMS_ENABLED", false),
				AccountSID: os.Getenv("ADMISSION_SMS_ACCOUNT_SID"),
				AuthToken:  os.Getenv("ADMISSION_SMS_AUTH_TOKEN"),
				From:       os.Getenv("ADMISSION_SMS_FROM"),
				APIBase:    envOr("ADMISSION_SMS_API_BASE", "https://api.twilio.com"),
			},
			QueueSize: envInt("ADMISSION_NOTIFY_QUEUE_SIZE", 256),
		},
		Audit: Audit{
			Brokers: splitNonEmpty(os.Getenv("ADMISSION_AUDIT_BROKERS")),
			Topic:   envOr("ADMISSION_AUDIT_TOPIC", "admission.lifecycle"),
		},
		ReminderAge: envDuration("ADMISSION_REMINDER_AGE", 72*time.Hour),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitNonEmpty(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(v); i++ {
		if i == len(v) || v[i] == ',' {
			if part := v[start:i]; part != "" {
				out = append(out, part)
			}
			start = i + 1
		}
	}
	return out
}
