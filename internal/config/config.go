package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Server     ServerConfig     `validate:"required"`
	Kafka      KafkaConfig
	ClickHouse ClickHouseConfig
	Postgres   PostgresConfig
	Auth       AuthConfig    `validate:"required"`
	Billing    BillingConfig `validate:"required"`
	Payment    PaymentConfig
	Sentry     SentryConfig
	Logging    LoggingConfig `validate:"required"`
}

type DeploymentConfig struct {
	// Mode is either "local" (in-memory pubsub, no external brokers) or "server"
	Mode string `validate:"required,oneof=local server"`
}

type ServerConfig struct {
	Address string `validate:"required"`
}

type KafkaConfig struct {
	Brokers       []string
	ConsumerGroup string
	Topic         string
}

type ClickHouseConfig struct {
	Address  string
	TLS      bool
	Username string
	Password string
	Database string
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type AuthConfig struct {
	// Header carrying the API key, ex x-api-key
	Header string `validate:"required"`
	// Secret is the symmetric secret used to HMAC API key secrets at rest
	Secret string `validate:"required"`
	// CacheTTL caps how long a resolved key stays in the process local cache
	CacheTTL time.Duration
}

type BillingConfig struct {
	// PaymentGracePeriodDays is added to issue_date to compute due_date
	PaymentGracePeriodDays int `validate:"gte=0"`
	// ClosePeriodGrace delays end of period billing past end_date
	ClosePeriodGrace time.Duration
	// EventMaxAgeDays rejects events older than this at ingest
	EventMaxAgeDays int `validate:"gt=0"`
	// PeriodicInterval is the wall clock cadence of the periodic driver
	PeriodicInterval time.Duration
}

type PaymentConfig struct {
	// Provider is "none" or "remote"; remote needs a connector BaseURL
	Provider string `validate:"omitempty,oneof=none remote"`
	BaseURL  string
}

type SentryConfig struct {
	Enabled     bool
	DSN         string
	Environment string
	SampleRate  float64 `validate:"gte=0,lte=1"`
}

type LoggingConfig struct {
	Level string `validate:"required"`
}

func NewConfig() (*Configuration, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/lotus")

	v.SetEnvPrefix("LOTUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", "local")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("kafka.topic", "usage.events")
	v.SetDefault("kafka.consumergroup", "materializer")
	v.SetDefault("auth.header", "x-api-key")
	v.SetDefault("auth.cachettl", 24*time.Hour)
	v.SetDefault("billing.paymentgraceperioddays", 1)
	v.SetDefault("billing.closeperiodgrace", 30*time.Minute)
	v.SetDefault("billing.eventmaxagedays", 30)
	v.SetDefault("billing.periodicinterval", 5*time.Minute)
	v.SetDefault("payment.provider", "none")
	v.SetDefault("sentry.samplerate", 0.1)
	v.SetDefault("logging.level", "info")
}

func (c Configuration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// GetDefaultConfig returns a default configuration for tests and scripts
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: "local"},
		Server:     ServerConfig{Address: ":8080"},
		Auth: AuthConfig{
			Header:   "x-api-key",
			Secret:   "test-secret",
			CacheTTL: 24 * time.Hour,
		},
		Billing: BillingConfig{
			PaymentGracePeriodDays: 1,
			ClosePeriodGrace:       30 * time.Minute,
			EventMaxAgeDays:        30,
			PeriodicInterval:       5 * time.Minute,
		},
		Payment: PaymentConfig{Provider: "none"},
		Sentry:  SentryConfig{Enabled: false},
		Logging: LoggingConfig{Level: "debug"},
	}
}

func (c ClickHouseConfig) GetClientOptions() *clickhouse.Options {
	options := &clickhouse.Options{
		Addr: []string{c.Address},
		Auth: clickhouse.Auth{
			Database: c.Database,
			Username: c.Username,
			Password: c.Password,
		},
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
	}
	if c.TLS {
		options.TLS = &tls.Config{}
	}
	return options
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}
