package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	Environment string
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Fees        FeeConfig
	Gateways    GatewaysConfig
	RateLimit   RateLimitConfig
	PII         PIIConfig
	LogLevel    string
}

type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FeeConfig holds the marketplace money rules
type FeeConfig struct {
	PlatformFeePercent decimal.Decimal
	MaxCommissionRate  int
	IdempotencyWindow  time.Duration
	OwnerVendorID      string
}

type GatewaysConfig struct {
	Timeout   time.Duration
	Asaas     AsaasConfig
	Stripe    StripeConfig
	PushinPay PushinPayConfig
}

type AsaasConfig struct {
	APIKey      string
	Environment string
}

type StripeConfig struct {
	SecretKey string
}

type PushinPayConfig struct {
	Token             string
	Environment       string
	PlatformAccountID string
	WebhookURL        string
}

type RateLimitConfig struct {
	MaxAttempts int
	Window      time.Duration
	Block       time.Duration
}

type PIIConfig struct {
	EncryptionKey string
}

func Load() (*Config, error) {
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("LOG_LEVEL", "info")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read .env file (optional)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	feePercent, err := decimal.NewFromString(getEnvOrViper("PLATFORM_FEE_PERCENT", "0.04"))
	if err != nil {
		return nil, fmt.Errorf("invalid PLATFORM_FEE_PERCENT: %w", err)
	}
	maxRate, err := strconv.Atoi(getEnvOrViper("MAX_COMMISSION_RATE", "90"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_COMMISSION_RATE: %w", err)
	}
	maxAttempts, err := strconv.Atoi(getEnvOrViper("RATE_LIMIT_MAX_ATTEMPTS", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_MAX_ATTEMPTS: %w", err)
	}

	durations := map[string]string{
		"IDEMPOTENCY_WINDOW": "5m",
		"GATEWAY_TIMEOUT":    "15s",
		"RATE_LIMIT_WINDOW":  "1m",
		"RATE_LIMIT_BLOCK":   "2m",
	}
	parsed := make(map[string]time.Duration, len(durations))
	for key, def := range durations {
		d, err := time.ParseDuration(getEnvOrViper(key, def))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		parsed[key] = d
	}

	cfg := &Config{
		Port:        getEnvOrViper("PORT", "8080"),
		Environment: getEnvOrViper("ENVIRONMENT", "development"),
		Database: DatabaseConfig{
			Host:           getEnvOrViper("DB_HOST", "localhost"),
			Port:           getEnvOrViper("DB_PORT", "5432"),
			User:           getEnvOrViper("DB_USER", "postgres"),
			Password:       getEnvOrViper("DB_PASSWORD", "postgres"),
			DBName:         getEnvOrViper("DB_NAME", "orderengine"),
			SSLMode:        getEnvOrViper("DB_SSLMODE", "disable"),
			MigrationsPath: getEnvOrViper("DB_MIGRATIONS_PATH", "internal/repository/postgres/migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrViper("REDIS_ADDR", ""),
			Password: getEnvOrViper("REDIS_PASSWORD", ""),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnvOrViper("KAFKA_BROKERS", "")),
			Topic:   getEnvOrViper("KAFKA_TOPIC", "order-lifecycle"),
		},
		Fees: FeeConfig{
			PlatformFeePercent: feePercent,
			MaxCommissionRate:  maxRate,
			IdempotencyWindow:  parsed["IDEMPOTENCY_WINDOW"],
			OwnerVendorID:      getEnvOrViper("PLATFORM_OWNER_VENDOR_ID", ""),
		},
		Gateways: GatewaysConfig{
			Timeout: parsed["GATEWAY_TIMEOUT"],
			Asaas: AsaasConfig{
				APIKey:      getEnvOrViper("ASAAS_API_KEY", ""),
				Environment: getEnvOrViper("ASAAS_ENVIRONMENT", "sandbox"),
			},
			Stripe: StripeConfig{
				SecretKey: getEnvOrViper("STRIPE_SECRET_KEY", ""),
			},
			PushinPay: PushinPayConfig{
				Token:             getEnvOrViper("PUSHINPAY_TOKEN", ""),
				Environment:       getEnvOrViper("PUSHINPAY_ENVIRONMENT", "sandbox"),
				PlatformAccountID: getEnvOrViper("PUSHINPAY_PLATFORM_ACCOUNT_ID", ""),
				WebhookURL:        getEnvOrViper("PUSHINPAY_WEBHOOK_URL", ""),
			},
		},
		RateLimit: RateLimitConfig{
			MaxAttempts: maxAttempts,
			Window:      parsed["RATE_LIMIT_WINDOW"],
			Block:       parsed["RATE_LIMIT_BLOCK"],
		},
		PII: PIIConfig{
			EncryptionKey: getEnvOrViper("PII_ENCRYPTION_KEY", ""),
		},
		LogLevel: getEnvOrViper("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required fields and value ranges
func (c *Config) Validate() error {
	if c.PII.EncryptionKey == "" {
		return fmt.Errorf("PII_ENCRYPTION_KEY is required")
	}
	if c.Fees.PlatformFeePercent.IsNegative() || c.Fees.PlatformFeePercent.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("PLATFORM_FEE_PERCENT must be in [0, 1), got %s", c.Fees.PlatformFeePercent)
	}
	if c.Fees.MaxCommissionRate < 0 || c.Fees.MaxCommissionRate > 100 {
		return fmt.Errorf("MAX_COMMISSION_RATE must be in [0, 100], got %d", c.Fees.MaxCommissionRate)
	}
	if c.RateLimit.MaxAttempts < 1 {
		return fmt.Errorf("RATE_LIMIT_MAX_ATTEMPTS must be positive")
	}
	return nil
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
