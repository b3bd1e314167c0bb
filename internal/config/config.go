// Package config loads application configuration from environment variables.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the service.
type Config struct {
	Port        string
	DatabaseDSN string
	RedisAddr   string
	JWTSecret   string
	JWTAudience string

	// Default object-store identity used for submissions without
	// caller-supplied credentials.
	AWSRegion       string
	AWSAccessKeyID  string
	AWSSecretKey    string
	StorageBucket   string
	StorageEndpoint string // optional, for MinIO or other S3-compatible stores
	StoragePath     bool   // path-style addressing, required for MinIO

	// Submission policy.
	PollMaxAttempts int
	PollInterval    time.Duration
	MaxUploadBytes  int64
}

// Load reads configuration from a .env file (if present) and environment variables.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading from environment")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseDSN: getEnv("DATABASE_DSN", "host=postgres user=postgres password=postgres dbname=imageanalysis port=5432 sslmode=disable"),
		RedisAddr:   getEnv("REDIS_ADDR", "redis:6379"),
		JWTSecret:   getEnv("JWT_SECRET", "dev-secret"),
		JWTAudience: os.Getenv("JWT_AUDIENCE"),

		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:  os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretKey:    os.Getenv("AWS_SECRET_ACCESS_KEY"),
		StorageBucket:   getEnv("STORAGE_BUCKET", "image-analysis"),
		StorageEndpoint: os.Getenv("STORAGE_ENDPOINT"),
		StoragePath:     getEnv("STORAGE_PATH_STYLE", "false") == "true",

		PollMaxAttempts: getEnvInt("POLL_MAX_ATTEMPTS", 15),
		PollInterval:    time.Duration(getEnvInt("POLL_INTERVAL_MS", 1000)) * time.Millisecond,
		MaxUploadBytes:  int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid value %q for %s, using default %d", v, key, fallback)
		return fallback
	}
	return n
}
