// Package config loads the server configuration from the environment.
// cmd/server reads an optional .env file first; everything here only sees
// the resulting process environment.
package config

import (
	"errors"
	"os"
	"time"
)

// Config holds runtime settings for the FlockSync server.
type Config struct {
	// ServerPort is the HTTP listen port.
	ServerPort string

	// DatabaseURL is the PostgreSQL DSN (pgx).
	DatabaseURL string

	// RedisURL backs the change-feed pub/sub between server instances.
	RedisURL string

	// JWTSecret signs access tokens (HS256); JWTExpiry bounds their life.
	JWTSecret string
	JWTExpiry time.Duration

	// S3 settings for presigned artwork up/downloads. The defaults target
	// a local MinIO and are not production values.
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string

	// LogFile, when set, routes logs into a size-rotated file instead of
	// stdout.
	LogLevel string
	LogFile  string
}

// LoadConfig reads the environment and validates the required settings.
func LoadConfig() (*Config, error) {
	expiryStr := getEnv("JWT_EXPIRY", "24h")
	expiry, err := time.ParseDuration(expiryStr)
	if err != nil {
		return nil, errors.New("invalid JWT_EXPIRY format")
	}

	cfg := &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		JWTExpiry:   expiry,
		S3AccessKey: getEnv("S3_ACCESS_KEY", "admin"),
		S3SecretKey: getEnv("S3_SECRET_KEY", "secretpassword"),
		S3Bucket:    getEnv("S3_BUCKET", "artwork"),
		S3Region:    getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:  getEnv("S3_ENDPOINT", "http://127.0.0.1:9000/"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFile:     os.Getenv("LOG_FILE"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
