package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName         = "TradeGate"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultTokenTTL        = time.Hour
	defaultPriceCacheTTL   = 5 * time.Second
	defaultLoginRateLimit  = 10
	defaultSyncAttempts    = 5
	defaultSyncInterval    = time.Second
	defaultExchangeMode    = ExchangeSimulated
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// Exchange backends selectable through EXCHANGE_MODE.
const (
	ExchangeSimulated = "simulated"
	ExchangeBinance   = "binance"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	BotToken   string
	BotEnabled bool
	JWTSecret  string
	TokenTTL   time.Duration

	ExchangeMode     string
	BinanceAPIKey    string
	BinanceAPISecret string
	BinanceTestnet   bool
	PriceCacheTTL    time.Duration

	LoginRateLimit      int
	ContactSyncAttempts int
	ContactSyncInterval time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
// A .env file in the working directory is applied first when present; real environment
// variables win over it.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		AppName:             getEnv("APP_NAME", defaultAppName),
		AppEnv:              getEnv("APP_ENV", defaultAppEnv),
		Port:                getEnv("PORT", defaultPort),
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            os.Getenv("REDIS_URL"),
		ShutdownPeriod:      defaultShutdownDelay,
		IdempotencyTTL:      defaultIdempotencyTTL,
		BotToken:            os.Getenv("TELEGRAM_BOT_TOKEN"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		ExchangeMode:        strings.ToLower(getEnv("EXCHANGE_MODE", defaultExchangeMode)),
		BinanceAPIKey:       os.Getenv("BINANCE_API_KEY"),
		BinanceAPISecret:    os.Getenv("BINANCE_API_SECRET"),
		LoginRateLimit:      defaultLoginRateLimit,
		ContactSyncAttempts: defaultSyncAttempts,
	}

	var err error
	if cfg.ShutdownPeriod, err = durationFromEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationFromEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.TokenTTL, err = durationFromEnv("", "TOKEN_TTL", defaultTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.PriceCacheTTL, err = durationFromEnv("", "PRICE_CACHE_TTL", defaultPriceCacheTTL); err != nil {
		return Config{}, err
	}
	if cfg.ContactSyncInterval, err = durationFromEnv("", "CONTACT_SYNC_INTERVAL", defaultSyncInterval); err != nil {
		return Config{}, err
	}
	if cfg.BotEnabled, err = boolFromEnv("BOT_ENABLED", true); err != nil {
		return Config{}, err
	}
	if cfg.BinanceTestnet, err = boolFromEnv("BINANCE_TESTNET", true); err != nil {
		return Config{}, err
	}
	if cfg.LoginRateLimit, err = intFromEnv("LOGIN_RATE_LIMIT", defaultLoginRateLimit); err != nil {
		return Config{}, err
	}
	if cfg.ContactSyncAttempts, err = intFromEnv("CONTACT_SYNC_ATTEMPTS", defaultSyncAttempts); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN must be set")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.ContactSyncAttempts < 1 {
		return fmt.Errorf("CONTACT_SYNC_ATTEMPTS must be at least 1")
	}
	switch c.ExchangeMode {
	case ExchangeSimulated:
	case ExchangeBinance:
		if c.BinanceAPIKey == "" || c.BinanceAPISecret == "" {
			return fmt.Errorf("BINANCE_API_KEY and BINANCE_API_SECRET must be set when EXCHANGE_MODE=%s", ExchangeBinance)
		}
	default:
		return fmt.Errorf("unsupported EXCHANGE_MODE %q", c.ExchangeMode)
	}
	if !c.IsDev() {
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set")
		}
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL must be set")
		}
	}
	return nil
}

// IsDev reports whether the app runs in a local environment where in-memory
// backends may stand in for Postgres and Redis.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// durationFromEnv prefers an integer seconds variable and falls back to a Go duration string.
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

func intFromEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
