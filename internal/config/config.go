package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName         = "Storefront"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
	defaultBackendURL      = "https://jewel-tech.onrender.com"
	defaultMessagingHost   = "wa.me"
	defaultStoreBackend    = StoreMemory
	defaultDevSecret       = "storefront-dev-secret-change-me"
	defaultSessionTTL      = 30 * 24 * time.Hour
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultOTPPerMinute    = 5
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// Store backends accepted by STORE_BACKEND.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	LogFormat      string
	BackendURL     string
	BackendTimeout time.Duration
	MerchantPhone  string
	MessagingHost  string
	StoreBackend   string
	DatabaseURL    string
	RedisURL       string
	DBMaxConns     int
	RedisPoolSize  int
	SessionSecret  string
	SessionTTL     time.Duration
	CookieSecure   bool
	SealStore      bool
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration
	OTPPerMinute   int
}

// Load reads an optional .env file, then the environment, and populates a Config instance.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         getEnv("APP_ENV", defaultAppEnv),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", defaultLogFormat)),
		BackendURL:     strings.TrimRight(getEnv("BACKEND_URL", defaultBackendURL), "/"),
		MerchantPhone:  strings.TrimPrefix(strings.TrimSpace(os.Getenv("MERCHANT_PHONE")), "+"),
		MessagingHost:  getEnv("MESSAGING_HOST", defaultMessagingHost),
		StoreBackend:   strings.ToLower(getEnv("STORE_BACKEND", defaultStoreBackend)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		SessionSecret:  os.Getenv("SESSION_SECRET"),
		SessionTTL:     defaultSessionTTL,
		ShutdownPeriod: defaultShutdownDelay,
		IdempotencyTTL: defaultIdempotencyTTL,
		OTPPerMinute:   defaultOTPPerMinute,
	}

	var err error
	if cfg.BackendTimeout, err = durationEnv("BACKEND_TIMEOUT", 0); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = durationEnv("SESSION_TTL", defaultSessionTTL); err != nil {
		return Config{}, err
	}
	if cfg.CookieSecure, err = boolEnv("COOKIE_SECURE", !cfg.IsDev()); err != nil {
		return Config{}, err
	}
	if cfg.SealStore, err = boolEnv("SEAL_STORE", false); err != nil {
		return Config{}, err
	}

	if v := os.Getenv(shutdownSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownSecondsEnvVar, err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(shutdownDurationEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownDurationEnvVar, err)
		}
		cfg.ShutdownPeriod = d
	}

	if v := os.Getenv(idemTTLSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLSecondsEnvVar, err)
		}
		cfg.IdempotencyTTL = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(idemTTLDurEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLDurEnvVar, err)
		}
		cfg.IdempotencyTTL = d
	}

	if cfg.OTPPerMinute, err = intEnv("OTP_REQUESTS_PER_MINUTE", defaultOTPPerMinute); err != nil {
		return Config{}, err
	}
	if cfg.DBMaxConns, err = intEnv("DB_MAX_CONNS", 0); err != nil {
		return Config{}, err
	}
	if cfg.RedisPoolSize, err = intEnv("REDIS_POOL_SIZE", 0); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case StoreMemory:
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL must be set when STORE_BACKEND=redis")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set when STORE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.StoreBackend)
	}

	if c.SessionSecret == "" {
		if !c.IsDev() {
			return fmt.Errorf("SESSION_SECRET must be set when APP_ENV=%s", c.AppEnv)
		}
		c.SessionSecret = defaultDevSecret
	}

	if c.MerchantPhone == "" && !c.IsDev() {
		return fmt.Errorf("MERCHANT_PHONE must be set when APP_ENV=%s", c.AppEnv)
	}

	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL must not be empty")
	}
	return nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the app runs in a local/development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return n, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
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
