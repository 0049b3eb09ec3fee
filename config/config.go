// Package config reads the server configuration from the environment,
// after loading a .env file when one exists.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port       string
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string
	DBSSLMode  string
	JWTSecret  string
	// RedisURL is optional; without it logouts are not enforced.
	RedisURL    string
	QuietPeriod time.Duration
	CORSOrigin  string
	LogLevel    string
}

// Load reads .env (a missing file is fine) and then the environment. It
// reports whether a .env file was loaded so the caller can log it.
func Load() (Config, bool) {
	loaded := godotenv.Load() == nil
	return FromEnv(), loaded
}

func FromEnv() Config {
	return Config{
		Port:        getenv("PORT", "8080"),
		DBUser:      getenv("user", ""),
		DBPassword:  getenv("password", ""),
		DBHost:      getenv("host", "localhost"),
		DBPort:      getenv("port", "5432"),
		DBName:      getenv("dbname", "postgres"),
		DBSSLMode:   getenv("DB_SSLMODE", "require"),
		JWTSecret:   getenv("SUPABASE_JWT_SECRET", ""),
		RedisURL:    getenv("REDIS_URL", ""),
		QuietPeriod: time.Duration(getenvInt("AUTOSAVE_QUIET_MS", 3000)) * time.Millisecond,
		CORSOrigin:  getenv("CORS_ORIGIN", "*"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
	}
}

// DatabaseURL is the lib/pq connection string.
func (c Config) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

func (c Config) Addr() string {
	return ":" + c.Port
}

func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET environment variable not set")
	}
	if c.QuietPeriod <= 0 {
		return fmt.Errorf("AUTOSAVE_QUIET_MS must be positive")
	}
	return nil
}

func getenv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := getenv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
