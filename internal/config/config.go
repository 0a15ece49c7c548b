package config

import (
	"encoding/hex"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string // Postgres; empty means SQLite
	SQLitePath  string
	RedisURL    string
	JWTSecret   []byte
	CipherKey   []byte // 32 bytes, AES-256
	UploadDir   string
	CORSOrigins []string
}

// devCipherKey is only ever used in development when CIPHER_KEY is unset.
const devCipherKey = "6368616e676520746869732064657620636970686572206b6579202121212121"

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "4040"),
		Env:         getEnv("ENV", "development"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  getEnv("SQLITE_PATH", "./data/courier.db"),
		RedisURL:    os.Getenv("REDIS_URL"),
		UploadDir:   getEnv("UPLOAD_DIR", "./uploads"),
	}

	// Parse allowed origins (comma-separated)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		for _, entry := range strings.Split(origins, ",") {
			entry = strings.TrimSpace(entry)
			if entry != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, entry)
			}
		}
	} else {
		cfg.CORSOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	}

	secret := os.Getenv("JWT_SECRET_KEY")
	keyHex := os.Getenv("CIPHER_KEY")

	if cfg.Env == "production" {
		if secret == "" {
			panic("JWT_SECRET_KEY is required in production")
		}
		if keyHex == "" {
			panic("CIPHER_KEY is required in production")
		}
	}
	if secret == "" {
		secret = "courier-dev-secret"
	}
	if keyHex == "" {
		keyHex = devCipherKey
	}

	key, err := hex.DecodeString(keyHex)
	if err != nil || len(key) != 32 {
		panic("CIPHER_KEY must be 64 hex characters (32 bytes)")
	}

	cfg.JWTSecret = []byte(secret)
	cfg.CipherKey = key

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

