package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port     int
	LogLevel string
	Env      string

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis (optional, used for rate limiting the public endpoints)
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Web Push / VAPID
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string // contact address sent to the push service
	PushTimeout     time.Duration
	PushTTL         int // seconds the push service may queue an undelivered message

	// Notification job
	ReminderOffsets []int // lead times in days, e.g. 7,3,1
	DedupWindow     time.Duration
	JobTimeout      time.Duration
	AppURL          string // base URL embedded in notification payloads
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		Port:     8080,
		LogLevel: "info",
		Env:      "development",

		// Local postgres defaults
		DBHost:     "localhost",
		DBPort:     5432,
		DBUser:     "postgres",
		DBPassword: "",
		DBName:     "coupons",
		DBSSLMode:  "disable",

		// Redis defaults
		RedisHost:     "localhost",
		RedisPort:     6379,
		RedisPassword: "",
		RedisDB:       0,

		VAPIDSubscriber: "noreply@couponapp.com",
		PushTimeout:     10 * time.Second,
		PushTTL:         86400, // a day, matching the job cadence

		ReminderOffsets: []int{7, 3, 1},
		DedupWindow:     24 * time.Hour,
		JobTimeout:      5 * time.Minute,
		AppURL:          "https://app.couponapp.com",
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.Port = p
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if env := os.Getenv("ENV"); env != "" {
		cfg.Env = env
	}

	// Database config
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.DBHost = host
	}

	if port := os.Getenv("DB_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_PORT: %w", err)
		}
		cfg.DBPort = p
	}

	if user := os.Getenv("DB_USER"); user != "" {
		cfg.DBUser = user
	}

	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.DBPassword = password
	}

	if dbname := os.Getenv("DB_NAME"); dbname != "" {
		cfg.DBName = dbname
	}

	if sslmode := os.Getenv("DB_SSLMODE"); sslmode != "" {
		cfg.DBSSLMode = sslmode
	}

	// Redis config
	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.RedisHost = host
	}

	if port := os.Getenv("REDIS_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
		}
		cfg.RedisPort = p
	}

	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.RedisPassword = password
	}

	if db := os.Getenv("REDIS_DB"); db != "" {
		d, err := strconv.Atoi(db)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		cfg.RedisDB = d
	}

	// VAPID keys are validated at sender construction rather than here.
	cfg.VAPIDPublicKey = os.Getenv("VAPID_PUBLIC_KEY")
	cfg.VAPIDPrivateKey = os.Getenv("VAPID_PRIVATE_KEY")

	if sub := os.Getenv("VAPID_SUBSCRIBER"); sub != "" {
		cfg.VAPIDSubscriber = sub
	}

	if timeout := os.Getenv("PUSH_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid PUSH_TIMEOUT: %w", err)
		}
		cfg.PushTimeout = d
	}

	if ttl := os.Getenv("PUSH_TTL"); ttl != "" {
		t, err := strconv.Atoi(ttl)
		if err != nil {
			return nil, fmt.Errorf("invalid PUSH_TTL: %w", err)
		}
		cfg.PushTTL = t
	}

	if offsets := os.Getenv("NOTIFY_OFFSETS"); offsets != "" {
		parsed, err := parseOffsets(offsets)
		if err != nil {
			return nil, fmt.Errorf("invalid NOTIFY_OFFSETS: %w", err)
		}
		cfg.ReminderOffsets = parsed
	}

	// The dedup window must stay wider than the trigger cadence; shrinking it
	// below the cron interval re-opens the duplicate-send hole.
	if window := os.Getenv("DEDUP_WINDOW"); window != "" {
		d, err := time.ParseDuration(window)
		if err != nil {
			return nil, fmt.Errorf("invalid DEDUP_WINDOW: %w", err)
		}
		cfg.DedupWindow = d
	}

	if timeout := os.Getenv("JOB_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid JOB_TIMEOUT: %w", err)
		}
		cfg.JobTimeout = d
	}

	if url := os.Getenv("APP_URL"); url != "" {
		cfg.AppURL = strings.TrimRight(url, "/")
	}

	return cfg, nil
}

// parseOffsets parses a comma-separated list of day offsets, e.g. "7,3,1".
func parseOffsets(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	offsets := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("offset %q is not a number", part)
		}
		if n <= 0 {
			return nil, fmt.Errorf("offset %d must be positive", n)
		}
		offsets = append(offsets, n)
	}
	return offsets, nil
}
