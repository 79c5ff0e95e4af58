package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL        string
	JWTSecretKey       string
	ServerPort         int
	JWTTTL             time.Duration
	CORSAllowedOrigins []string

	// StaleRoomAfter is how long a room may sit in waiting before the
	// scheduler ends it. Zero disables the job.
	StaleRoomAfter         time.Duration
	StaleRoomCheckInterval time.Duration

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string
}

// ArchiveEnabled reports whether completed brackets are uploaded to R2.
func (c *Config) ArchiveEnabled() bool {
	return c.R2AccountID != ""
}

// Load reads configuration from the environment, after loading .env if present.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv. Load uses os.Getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		DatabaseURL:       getenv("DATABASE_URL"),
		JWTSecretKey:      getenv("JWT_SECRET_KEY"),
		R2AccountID:       getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:   getenv("R2_PUBLIC_BASE_URL"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL environment variable is not set")
	}
	if cfg.JWTSecretKey == "" {
		return nil, errors.New("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := strconv.Atoi(withDefault(getenv("SERVER_PORT"), "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}
	cfg.ServerPort = port

	if cfg.JWTTTL, err = parseDuration(getenv, "JWT_TTL", "24h"); err != nil {
		return nil, err
	}
	if cfg.JWTTTL <= 0 {
		return nil, fmt.Errorf("JWT_TTL must be positive, got %s", cfg.JWTTTL)
	}
	if cfg.StaleRoomAfter, err = parseDuration(getenv, "STALE_ROOM_AFTER", "24h"); err != nil {
		return nil, err
	}
	if cfg.StaleRoomCheckInterval, err = parseDuration(getenv, "STALE_ROOM_CHECK_INTERVAL", "10m"); err != nil {
		return nil, err
	}
	if cfg.StaleRoomAfter < 0 || (cfg.StaleRoomAfter > 0 && cfg.StaleRoomCheckInterval <= 0) {
		return nil, errors.New("STALE_ROOM_AFTER must be >= 0 and STALE_ROOM_CHECK_INTERVAL positive when enabled")
	}

	for _, origin := range strings.Split(withDefault(getenv("CORS_ALLOWED_ORIGINS"), "*"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}

	r2 := []string{cfg.R2AccountID, cfg.R2AccessKeyID, cfg.R2SecretAccessKey, cfg.R2BucketName}
	set := 0
	for _, v := range r2 {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != len(r2) {
		return nil, errors.New("R2_ACCOUNT_ID, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY and R2_BUCKET_NAME must be set together")
	}

	return cfg, nil
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func parseDuration(getenv func(string) string, key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(withDefault(getenv(key), def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return d, nil
}
