package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultAppName         = "PeerPool"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 720 * time.Hour
	defaultInterestPercent = "10"
	defaultPoolOwner       = "owner"
	defaultLoginRateLimit  = 5
	devJWTSecret           = "dev-access-secret"
	devRefreshSecret       = "dev-refresh-secret"
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	Env            string
	Port           string
	LogLevel       string
	LogFormat      string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	JWTSecret       string
	RefreshSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// InterestRatePercent is the pool's fixed rate, e.g. 10 for 10%.
	InterestRatePercent decimal.Decimal
	PoolOwner           string
	LoginRateLimit      int
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:         getEnv("APP_NAME", defaultAppName),
		Env:             strings.ToLower(getEnv("APP_ENV", defaultAppEnv)),
		Port:            getEnv("PORT", defaultPort),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", defaultLogFormat)),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		ShutdownPeriod:  defaultShutdownDelay,
		IdempotencyTTL:  defaultIdempotencyTTL,
		JWTSecret:       os.Getenv("JWT_SECRET"),
		RefreshSecret:   os.Getenv("REFRESH_SECRET"),
		AccessTokenTTL:  defaultAccessTokenTTL,
		RefreshTokenTTL: defaultRefreshTokenTTL,
		PoolOwner:       getEnv("POOL_OWNER", defaultPoolOwner),
		LoginRateLimit:  defaultLoginRateLimit,
	}

	var err error
	if cfg.ShutdownPeriod, err = durationFromEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationFromEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.AccessTokenTTL, err = durationFromEnv("", "ACCESS_TOKEN_TTL", cfg.AccessTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTokenTTL, err = durationFromEnv("", "REFRESH_TOKEN_TTL", cfg.RefreshTokenTTL); err != nil {
		return Config{}, err
	}

	rate, err := decimal.NewFromString(getEnv("POOL_INTEREST_RATE_PERCENT", defaultInterestPercent))
	if err != nil {
		return Config{}, fmt.Errorf("invalid POOL_INTEREST_RATE_PERCENT: %w", err)
	}
	if rate.IsNegative() {
		return Config{}, fmt.Errorf("POOL_INTEREST_RATE_PERCENT must not be negative")
	}
	cfg.InterestRatePercent = rate

	if v := os.Getenv("LOGIN_RATE_LIMIT_PER_MIN"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOGIN_RATE_LIMIT_PER_MIN: %w", err)
		}
		cfg.LoginRateLimit = n
	}

	switch cfg.LogFormat {
	case "json", "text":
	default:
		return Config{}, fmt.Errorf("LOG_FORMAT must be json or text, got %q", cfg.LogFormat)
	}

	if cfg.IsDevelopment() {
		if cfg.JWTSecret == "" {
			cfg.JWTSecret = devJWTSecret
		}
		if cfg.RefreshSecret == "" {
			cfg.RefreshSecret = devRefreshSecret
		}
		return cfg, nil
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}
	if cfg.JWTSecret == "" || cfg.RefreshSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET and REFRESH_SECRET must be set")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDevelopment reports whether in-memory backends may stand in for Postgres and Redis.
func (c Config) IsDevelopment() bool {
	switch c.Env {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// durationFromEnv prefers the integer seconds variable over the Go duration one.
func durationFromEnv(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if secondsKey != "" {
		if v := os.Getenv(secondsKey); v != "" {
			seconds, err := strconv.Atoi(v)
			if err != nil {
				return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
			}
			return time.Duration(seconds) * time.Second, nil
		}
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
