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
	defaultAppName           = "Harmoney"
	defaultAppEnv            = "development"
	defaultPort              = "8080"
	defaultLogLevel          = "info"
	defaultLogFormat         = "json"
	defaultShutdownDelay     = 10 * time.Second
	defaultIdempotencyTTL    = 24 * time.Hour
	defaultGatewayTimeout    = 30 * time.Second
	defaultReconcileInterval = 5 * time.Minute
	defaultReconcileAfter    = 15 * time.Minute
	defaultPurchaseRateLimit = 10
	defaultCurrency          = "NGN"
	defaultBankCode          = "090286"
	defaultBankName          = "Safe Haven MFB"
	devJWTSecret             = "harmoney-dev-secret"
	idemTTLSecondsEnvVar     = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar         = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar    = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar   = "SHUTDOWN_TIMEOUT"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	LogFormat      string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration
	JWTSecret      string

	Gateway GatewayConfig
	Wallet  WalletConfig

	WebhookSecret     string
	ReconcileInterval time.Duration
	ReconcileAfter    time.Duration
	PurchaseRateLimit int
}

// GatewayConfig holds the payment-rail client settings. An empty BaseURL selects the sandbox gateway.
type GatewayConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// WalletConfig holds defaults applied to newly provisioned wallets.
type WalletConfig struct {
	Currency string
	BankCode string
	BankName string
}

// Load reads configuration values from the environment and populates a Config instance.
// A .env file in the working directory is loaded first when present; real environment
// variables take precedence over it.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         strings.ToLower(getEnv("APP_ENV", defaultAppEnv)),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", defaultLogFormat)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		ShutdownPeriod: defaultShutdownDelay,
		IdempotencyTTL: defaultIdempotencyTTL,
		JWTSecret:      os.Getenv("JWT_SECRET"),
		Gateway: GatewayConfig{
			BaseURL:      strings.TrimRight(os.Getenv("GATEWAY_BASE_URL"), "/"),
			ClientID:     os.Getenv("GATEWAY_CLIENT_ID"),
			ClientSecret: os.Getenv("GATEWAY_CLIENT_SECRET"),
			Timeout:      defaultGatewayTimeout,
		},
		Wallet: WalletConfig{
			Currency: strings.ToUpper(getEnv("WALLET_CURRENCY", defaultCurrency)),
			BankCode: getEnv("WALLET_BANK_CODE", defaultBankCode),
			BankName: getEnv("WALLET_BANK_NAME", defaultBankName),
		},
		WebhookSecret:     os.Getenv("WEBHOOK_SECRET"),
		ReconcileInterval: defaultReconcileInterval,
		ReconcileAfter:    defaultReconcileAfter,
		PurchaseRateLimit: defaultPurchaseRateLimit,
	}

	var err error
	if cfg.ShutdownPeriod, err = durationFromEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationFromEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.Gateway.Timeout, err = durationFromEnv("", "GATEWAY_TIMEOUT", cfg.Gateway.Timeout); err != nil {
		return Config{}, err
	}
	if cfg.ReconcileInterval, err = durationFromEnv("", "RECONCILE_INTERVAL", cfg.ReconcileInterval); err != nil {
		return Config{}, err
	}
	if cfg.ReconcileAfter, err = durationFromEnv("", "RECONCILE_AFTER", cfg.ReconcileAfter); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("PURCHASE_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PURCHASE_RATE_LIMIT: %w", err)
		}
		cfg.PurchaseRateLimit = n
	}

	for _, d := range []struct {
		key   string
		value time.Duration
	}{
		{shutdownDurationEnvVar, cfg.ShutdownPeriod},
		{idemTTLDurEnvVar, cfg.IdempotencyTTL},
		{"GATEWAY_TIMEOUT", cfg.Gateway.Timeout},
		{"RECONCILE_INTERVAL", cfg.ReconcileInterval},
		{"RECONCILE_AFTER", cfg.ReconcileAfter},
	} {
		if d.value <= 0 {
			return Config{}, fmt.Errorf("%s must be positive, got %s", d.key, d.value)
		}
	}
	if cfg.PurchaseRateLimit <= 0 {
		return Config{}, fmt.Errorf("PURCHASE_RATE_LIMIT must be positive, got %d", cfg.PurchaseRateLimit)
	}
	if cfg.ReconcileAfter <= cfg.Gateway.Timeout {
		return Config{}, fmt.Errorf("RECONCILE_AFTER (%s) must exceed GATEWAY_TIMEOUT (%s)", cfg.ReconcileAfter, cfg.Gateway.Timeout)
	}

	if cfg.IsDev() {
		if cfg.JWTSecret == "" {
			cfg.JWTSecret = devJWTSecret
		}
		return cfg, nil
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET must be set")
	}
	if cfg.Gateway.BaseURL == "" {
		return Config{}, fmt.Errorf("GATEWAY_BASE_URL must be set")
	}
	if cfg.WebhookSecret == "" {
		return Config{}, fmt.Errorf("WEBHOOK_SECRET must be set")
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

// IsDev reports whether the service runs in a local/development environment.
func (c Config) IsDev() bool {
	switch c.AppEnv {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

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
