package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"checkout-service/database"
	aws_pkg "checkout-service/pkg/aws"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// DBCredentialsSecret is the Secrets Manager secret consulted when
// AWS_USE_SECRETS=true.
const DBCredentialsSecret = "checkout/DB_CREDENTIALS"

// Config holds all configuration for the checkout service.
type Config struct {
	Env  string
	Port string `validate:"required,numeric"`

	PostgresUser     string `validate:"required"`
	PostgresPassword string `validate:"required"`
	PostgresDB       string `validate:"required"`
	PostgresHost     string `validate:"required"`
	PostgresPort     string `validate:"required,numeric"`
	PostgresSSLMode  string `validate:"oneof=disable allow prefer require verify-ca verify-full"`
	PostgresTimeZone string

	StoreTimeout   time.Duration `validate:"gt=0"`
	RequestTimeout time.Duration `validate:"gt=0"`

	ExportDir           string `validate:"required"`
	ExportBucket        string
	CheckoutSNSTopicARN string

	RedisAddr       string `validate:"omitempty,hostname_port"`
	RedisPassword   string
	RedisDB         int           `validate:"gte=0"`
	ImportReportTTL time.Duration `validate:"gt=0"`

	AllowedOrigins     string
	RateLimitPerMinute int `validate:"gt=0"`
	RateLimitBurst     int `validate:"gt=0"`

	CloudWatchEnabled   bool
	CloudWatchLogGroup  string
	CloudWatchNamespace string
	AWSUseSecrets       bool
}

// Postgres returns the database connection settings.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:     c.PostgresHost,
		Port:     c.PostgresPort,
		User:     c.PostgresUser,
		Password: c.PostgresPassword,
		DBName:   c.PostgresDB,
		SSLMode:  c.PostgresSSLMode,
		TimeZone: c.PostgresTimeZone,
	}
}

// secretGetter is satisfied by *aws_pkg.SecretsClient.
type secretGetter interface {
	GetSecretMap(ctx context.Context, name string) (map[string]string, error)
}

// newSecrets is swapped in tests.
var newSecrets = func(ctx context.Context) (secretGetter, error) {
	awsCfg, err := aws_pkg.LoadAWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	return aws_pkg.NewSecretsClient(awsCfg), nil
}

// LoadConfig reads configuration from the environment (and .env when
// present) with optional Secrets Manager override of the DB credentials.
func LoadConfig(ctx context.Context) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:                 getEnv("ENV", "development"),
		Port:                getEnv("PORT", "8092"),
		PostgresUser:        os.Getenv("POSTGRES_USER"),
		PostgresPassword:    os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:          os.Getenv("POSTGRES_DB"),
		PostgresHost:        os.Getenv("POSTGRES_HOST"),
		PostgresPort:        getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:     getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone:    getEnv("POSTGRES_TIMEZONE", "UTC"),
		ExportDir:           getEnv("EXPORT_DIR", "./data"),
		ExportBucket:        os.Getenv("EXPORT_S3_BUCKET"),
		CheckoutSNSTopicARN: os.Getenv("CHECKOUT_SNS_TOPIC_ARN"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		AllowedOrigins:      os.Getenv("ALLOWED_ORIGINS"),
		CloudWatchLogGroup:  os.Getenv("CLOUDWATCH_LOG_GROUP"),
		CloudWatchNamespace: getEnv("CLOUDWATCH_NAMESPACE", "Checkout"),
	}

	var err error
	if cfg.StoreTimeout, err = envDuration("STORE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = envDuration("REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ImportReportTTL, err = envDuration("IMPORT_REPORT_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = envInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMinute, err = envInt("RATE_LIMIT_PER_MINUTE", 100); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = envInt("RATE_LIMIT_BURST", 50); err != nil {
		return nil, err
	}
	if cfg.CloudWatchEnabled, err = envBool("CLOUDWATCH_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.AWSUseSecrets, err = envBool("AWS_USE_SECRETS", false); err != nil {
		return nil, err
	}

	if cfg.AWSUseSecrets {
		if err := cfg.applySecrets(ctx); err != nil {
			return nil, err
		}
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applySecrets overrides DB credentials from Secrets Manager. Keys missing
// from the secret leave the environment value in place.
func (c *Config) applySecrets(ctx context.Context) error {
	sm, err := newSecrets(ctx)
	if err != nil {
		return fmt.Errorf("load aws config for secrets: %w", err)
	}
	m, err := sm.GetSecretMap(ctx, DBCredentialsSecret)
	if err != nil {
		return err
	}
	for key, field := range map[string]*string{
		"POSTGRES_USER":     &c.PostgresUser,
		"POSTGRES_PASSWORD": &c.PostgresPassword,
		"POSTGRES_DB":       &c.PostgresDB,
		"POSTGRES_HOST":     &c.PostgresHost,
		"POSTGRES_PORT":     &c.PostgresPort,
	} {
		if v := m[key]; v != "" {
			*field = v
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	d, err := cast.ToDurationE(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	n, err := cast.ToIntE(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	b, err := cast.ToBoolE(val)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
