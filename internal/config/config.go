// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         string
	DatabasePath string
	LogLevel     slog.Level

	JWTSecret         string
	AdminPasswordHash string
	AdminPassword     string
	BcryptCost        int
	SessionTTL        time.Duration
	CookieSecure      bool

	MaxImages         int
	ImageMaxWidth     int
	ImageMaxHeight    int
	ImageQuality      int
	UploadConcurrency int
	DraftTTL          time.Duration

	MinIO MinIOConfig

	RedisAddr string
	CacheTTL  time.Duration

	NATSURL string

	WhatsAppNumber string
}

// MinIOConfig is empty when images are kept in SQLite.
type MinIOConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
	PublicRead    bool
}

func (m MinIOConfig) Enabled() bool {
	return m.Endpoint != ""
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv and validates it.
func FromEnv(getenv func(string) string) (*Config, error) {
	e := env{getenv: getenv}
	cfg := &Config{
		Port:         e.str("PORT", "8080"),
		DatabasePath: e.str("DATABASE_PATH", "casas.db"),
		LogLevel:     e.level("LOG_LEVEL", slog.LevelInfo),

		JWTSecret:         getenv("JWT_SECRET"),
		AdminPasswordHash: getenv("ADMIN_PASSWORD_HASH"),
		AdminPassword:     getenv("ADMIN_PASSWORD"),
		BcryptCost:        e.int("BCRYPT_COST", 12),
		SessionTTL:        e.duration("SESSION_TTL", 12*time.Hour),
		// Default to secure cookies; disable only for local development.
		CookieSecure: getenv("COOKIE_SECURE") != "false",

		MaxImages:         e.int("MAX_IMAGES", 10),
		ImageMaxWidth:     e.int("IMAGE_MAX_WIDTH", 1200),
		ImageMaxHeight:    e.int("IMAGE_MAX_HEIGHT", 900),
		ImageQuality:      e.int("IMAGE_QUALITY", 80),
		UploadConcurrency: e.int("UPLOAD_CONCURRENCY", 3),
		DraftTTL:          e.duration("DRAFT_TTL", 2*time.Hour),

		MinIO: MinIOConfig{
			Endpoint:      getenv("MINIO_ENDPOINT"),
			AccessKey:     getenv("MINIO_ACCESS_KEY"),
			SecretKey:     getenv("MINIO_SECRET_KEY"),
			Bucket:        e.str("MINIO_BUCKET", "propiedades"),
			UseSSL:        e.bool("MINIO_USE_SSL", false),
			PublicBaseURL: getenv("MINIO_PUBLIC_URL"),
			PublicRead:    e.bool("MINIO_PUBLIC_READ", true),
		},

		RedisAddr: getenv("REDIS_ADDR"),
		CacheTTL:  e.duration("CACHE_TTL", 10*time.Minute),

		NATSURL: getenv("NATS_URL"),

		WhatsAppNumber: e.str("WHATSAPP_NUMBER", "5493512345678"),
	}

	if err := errors.Join(append(e.errs, cfg.validate())...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	} else if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters for HMAC-SHA256 security"))
	}
	if c.AdminPasswordHash == "" && c.AdminPassword == "" {
		errs = append(errs, errors.New("ADMIN_PASSWORD_HASH or ADMIN_PASSWORD is required"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 14 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between 4 and 14, got %d", c.BcryptCost))
	}
	if c.MaxImages < 1 {
		errs = append(errs, fmt.Errorf("MAX_IMAGES must be positive, got %d", c.MaxImages))
	}
	if c.ImageMaxWidth < 1 || c.ImageMaxHeight < 1 {
		errs = append(errs, errors.New("IMAGE_MAX_WIDTH and IMAGE_MAX_HEIGHT must be positive"))
	}
	if c.ImageQuality < 1 || c.ImageQuality > 100 {
		errs = append(errs, fmt.Errorf("IMAGE_QUALITY must be between 1 and 100, got %d", c.ImageQuality))
	}
	if c.UploadConcurrency < 1 {
		errs = append(errs, fmt.Errorf("UPLOAD_CONCURRENCY must be positive, got %d", c.UploadConcurrency))
	}
	if c.MinIO.Enabled() && (c.MinIO.AccessKey == "" || c.MinIO.SecretKey == "") {
		errs = append(errs, errors.New("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required with MINIO_ENDPOINT"))
	}
	return errors.Join(errs...)
}

// env collects parse errors so every bad variable is reported at once.
type env struct {
	getenv func(string) string
	errs   []error
}

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(e.getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *env) int(key string, def int) int {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return n
}

func (e *env) bool(key string, def bool) bool {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return b
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return d
}

func (e *env) level(key string, def slog.Level) slog.Level {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return l
}
