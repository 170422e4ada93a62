package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	DatabaseURL    string
	HTTPListenAddr string
	MetricsAddr    string
	LogLevel       string
	ServiceName    string

	TemporalAddress       string
	TemporalTLSCert       string
	TemporalTLSKey        string
	TemporalTLSCACert     string
	TemporalTLSServerName string

	JWTSecret      string
	JWTIssuer      string
	FrontendOrigin string
	CORSOrigins    []string

	InfinityPayAPIURL     string
	InfinityPayHandle     string
	InfinityPayWebhookURL string

	StripeSecretKey        string
	StripeWebhookSecret    string
	StripeConnectAccountID string
	// StripeApplicationFeePercent is the platform's cut of each connected-account
	// checkout, e.g. 10 for 10%.
	StripeApplicationFeePercent decimal.Decimal
	// StripeAPIURL overrides the Stripe API base URL. Empty means the SDK default.
	StripeAPIURL string

	ProviderTimeout time.Duration
	PlansFile       string

	PostmarkServerToken string
	NotifyFromEmail     string

	ExpiryWarningDays int
	TrialDays         int
}

func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		HTTPListenAddr: getEnv("HTTP_LISTEN_ADDR", ":8080"),
		MetricsAddr:    getEnv("METRICS_ADDR", ":9090"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		ServiceName:    getEnv("SERVICE_NAME", ""),

		TemporalAddress:       getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		TemporalTLSCert:       getEnv("TEMPORAL_TLS_CERT", ""),
		TemporalTLSKey:        getEnv("TEMPORAL_TLS_KEY", ""),
		TemporalTLSCACert:     getEnv("TEMPORAL_TLS_CA_CERT", ""),
		TemporalTLSServerName: getEnv("TEMPORAL_TLS_SERVER_NAME", ""),

		JWTSecret:      getEnv("JWT_SECRET", ""),
		JWTIssuer:      getEnv("JWT_ISSUER", "billing-api"),
		FrontendOrigin: strings.TrimRight(getEnv("FRONTEND_ORIGIN", "http://localhost:5173"), "/"),
		CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "")),

		InfinityPayAPIURL:     strings.TrimRight(getEnv("INFINITYPAY_API_URL", "https://api.infinitepay.io/invoices/public/checkout"), "/"),
		InfinityPayHandle:     getEnv("INFINITYPAY_HANDLE", ""),
		InfinityPayWebhookURL: getEnv("INFINITYPAY_WEBHOOK_URL", ""),

		StripeSecretKey:        getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret:    getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripeConnectAccountID: getEnv("STRIPE_CONNECT_ACCOUNT_ID", ""),
		StripeAPIURL:           getEnv("STRIPE_API_URL", ""),

		PlansFile: getEnv("PLANS_FILE", ""),

		PostmarkServerToken: getEnv("POSTMARK_SERVER_TOKEN", ""),
		NotifyFromEmail:     getEnv("NOTIFY_FROM_EMAIL", "billing@localhost"),
	}

	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{cfg.FrontendOrigin}
	}

	fee, err := decimal.NewFromString(getEnv("STRIPE_APPLICATION_FEE_PERCENT", "0"))
	if err != nil {
		return nil, fmt.Errorf("parse STRIPE_APPLICATION_FEE_PERCENT: %w", err)
	}
	cfg.StripeApplicationFeePercent = fee

	timeout, err := time.ParseDuration(getEnv("PROVIDER_TIMEOUT", "15s"))
	if err != nil {
		return nil, fmt.Errorf("parse PROVIDER_TIMEOUT: %w", err)
	}
	cfg.ProviderTimeout = timeout

	if cfg.ExpiryWarningDays, err = getEnvInt("EXPIRY_WARNING_DAYS", 5); err != nil {
		return nil, err
	}
	if cfg.TrialDays, err = getEnvInt("TRIAL_DAYS", 14); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all fields required by the given binary are present.
func (c *Config) Validate(role string) error {
	var missing []string
	require := func(value, name string) {
		if value == "" {
			missing = append(missing, name)
		}
	}

	switch role {
	case "billing-api":
		require(c.DatabaseURL, "DATABASE_URL")
		require(c.HTTPListenAddr, "HTTP_LISTEN_ADDR")
		require(c.JWTSecret, "JWT_SECRET")
		require(c.FrontendOrigin, "FRONTEND_ORIGIN")
	case "worker":
		require(c.DatabaseURL, "DATABASE_URL")
		require(c.TemporalAddress, "TEMPORAL_ADDRESS")
	default:
		return fmt.Errorf("unknown role %q", role)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	if role == "billing-api" {
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 bytes")
		}
		if c.StripeSecretKey != "" && c.StripeWebhookSecret == "" {
			return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
		}
		if c.StripeApplicationFeePercent.IsNegative() || c.StripeApplicationFeePercent.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("STRIPE_APPLICATION_FEE_PERCENT must be between 0 and 100")
		}
	}
	if (c.TemporalTLSCert == "") != (c.TemporalTLSKey == "") {
		return fmt.Errorf("TEMPORAL_TLS_CERT and TEMPORAL_TLS_KEY must both be set")
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive")
	}
	if c.ExpiryWarningDays < 0 {
		return fmt.Errorf("EXPIRY_WARNING_DAYS must not be negative")
	}
	return nil
}

// InfinityPayEnabled reports whether the checkout-link provider is configured.
func (c *Config) InfinityPayEnabled() bool {
	return c.InfinityPayHandle != ""
}

// StripeEnabled reports whether the Connect provider is configured.
func (c *Config) StripeEnabled() bool {
	return c.StripeSecretKey != "" && c.StripeConnectAccountID != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
