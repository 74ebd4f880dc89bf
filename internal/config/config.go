// Package config loads application configuration from environment variables.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environments recognised by APP_ENV.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env    string // "development" enables verbose error responses
	Port   string // HTTP port to listen on
	DBUser string
	DBPass string // empty allowed
	DBHost string
	DBPort string
	DBName string

	JWTSecret        string        // secret used to sign access tokens
	JWTExpiresIn     time.Duration // access token lifetime
	JWTCookieExpires time.Duration // lifetime of the jwt cookie
	BcryptCost       int

	QueryMaxLimit int // upper bound for ?limit=, 0 disables the clamp

	LogLevel  string
	LogFormat string // "json" or "console"

	RabbitURL string // empty disables the signup event queue

	Mail      MailConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
}

// MailConfig describes the SMTP relay used for password reset and welcome
// mails.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Load reads a .env file when present, then builds the Config.  Required
// variables are enforced by must() and missing values cause the program to
// exit with a fatal log message.
func Load() Config {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	return Config{
		Env:    envStr("APP_ENV", EnvDevelopment),
		Port:   envStr("APP_PORT", "3000"),
		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: must("DB_HOST"),
		DBPort: envStr("DB_PORT", "3306"),
		DBName: must("DB_NAME"),

		JWTSecret:        must("JWT_SECRET"),
		JWTExpiresIn:     envDur("JWT_EXPIRES_IN", 90*24*time.Hour),
		JWTCookieExpires: time.Duration(envInt("JWT_COOKIE_EXPIRES_IN", 90)) * 24 * time.Hour,
		BcryptCost:       envInt("BCRYPT_COST", 10),

		QueryMaxLimit: envInt("QUERY_MAX_LIMIT", 100),

		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", "json"),

		RabbitURL: os.Getenv("RABBITMQ_URL"),

		Mail: MailConfig{
			Host:     envStr("EMAIL_HOST", "localhost"),
			Port:     envInt("EMAIL_PORT", 25),
			Username: os.Getenv("EMAIL_USERNAME"),
			Password: os.Getenv("EMAIL_PASSWORD"),
			From:     envStr("EMAIL_FROM", "Tours <hello@tours.local>"),
		},
		RateLimit: LoadRateLimitConfig(),
		Cache:     LoadCacheConfig(),
	}
}

// IsDevelopment reports whether verbose error responses are enabled.
func (c Config) IsDevelopment() bool { return c.Env == EnvDevelopment }

// IsProduction reports whether cookies must be marked Secure.
func (c Config) IsProduction() bool { return c.Env == EnvProduction }

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v, err := strconv.ParseBool(os.Getenv(k))
	if err != nil {
		return d
	}
	return v
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", k, v)
	}
	return n
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	dur, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("invalid duration for %s: %q", k, v)
	}
	return dur
}
