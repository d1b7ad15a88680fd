package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
	"github.com/recruitlink/billing/internal/types"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment    DeploymentConfig    `mapstructure:"deployment" validate:"required"`
	Server        ServerConfig        `mapstructure:"server" validate:"required"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Logging       LoggingConfig       `mapstructure:"logging" validate:"required"`
	Postgres      PostgresConfig      `mapstructure:"postgres" validate:"required"`
	Stripe        StripeConfig        `mapstructure:"stripe"`
	Billing       BillingConfig       `mapstructure:"billing"`
	Webhook       WebhookConfig       `mapstructure:"webhook"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	S3            S3Config            `mapstructure:"s3"`
	Sentry        SentryConfig        `mapstructure:"sentry"`
	Pyroscope     PyroscopeConfig     `mapstructure:"pyroscope"`
}

type DeploymentConfig struct {
	Mode types.RunMode `mapstructure:"mode" validate:"required"`
}

type ServerConfig struct {
	Address string `mapstructure:"address" validate:"required"`
}

// AuthConfig guards the admin read endpoints
type AuthConfig struct {
	APIKey APIKeyConfig `mapstructure:"api_key"`
}

type APIKeyConfig struct {
	Header string `mapstructure:"header" validate:"required"`
	// Keys maps the sha256 hex digest of a key to its details
	Keys map[string]APIKeyDetails `mapstructure:"keys"`
}

type APIKeyDetails struct {
	Name     string `mapstructure:"name" json:"name"`
	IsActive bool   `mapstructure:"is_active" json:"is_active"`
}

type LoggingConfig struct {
	Level types.LogLevel `mapstructure:"level" validate:"required"`
}

type PostgresConfig struct {
	Host                   string `mapstructure:"host"`
	Port                   int    `mapstructure:"port"`
	User                   string `mapstructure:"user"`
	Password               string `mapstructure:"password"`
	DBName                 string `mapstructure:"dbname"`
	SSLMode                string `mapstructure:"sslmode"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes"`
}

// StripeConfig holds the processor credentials and client behaviour
type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	// APIBaseURL overrides the processor endpoint, used by tests and local mocks
	APIBaseURL string `mapstructure:"api_base_url"`
	// MaxRetries is the number of retries after the first attempt for transport failures
	MaxRetries int           `mapstructure:"max_retries" validate:"gte=0,lte=5"`
	Timeout    time.Duration `mapstructure:"timeout"`
	// RateLimit is the number of outgoing requests per second
	RateLimit float64 `mapstructure:"rate_limit" validate:"gte=0"`
	// SignatureTolerance is how old a signed webhook timestamp may be
	SignatureTolerance time.Duration `mapstructure:"signature_tolerance"`
}

// BillingConfig holds the plan catalog and how it is validated
type BillingConfig struct {
	// SandboxMode relaxes plan validation. It must be enabled explicitly and
	// is rejected when the processor key is a live key.
	SandboxMode   bool         `mapstructure:"sandbox_mode"`
	SyncOnStartup bool         `mapstructure:"sync_on_startup"`
	Plans         []PlanConfig `mapstructure:"plans" validate:"dive"`
	// SyncConcurrency bounds the number of concurrent price validations
	SyncConcurrency int `mapstructure:"sync_concurrency" validate:"gte=0"`
}

// PlanConfig is one locally defined plan
type PlanConfig struct {
	Name            string                `mapstructure:"name" validate:"required"`
	Description     string                `mapstructure:"description"`
	Amount          int64                 `mapstructure:"amount" validate:"required,gt=0"`
	Currency        string                `mapstructure:"currency" validate:"omitempty,len=3"`
	BillingInterval types.BillingInterval `mapstructure:"billing_interval" validate:"required"`
	Features        []string              `mapstructure:"features"`
	DisplayOrder    int                   `mapstructure:"display_order"`
}

type WebhookConfig struct {
	// ProcessingTimeout bounds inline processing so the sender's delivery timeout is never hit
	ProcessingTimeout time.Duration `mapstructure:"processing_timeout"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes"`
	// EventRetention is how long processed event ids are kept for deduplication
	EventRetention time.Duration `mapstructure:"event_retention"`
}

// NotificationsConfig configures the post-commit notification pipeline
type NotificationsConfig struct {
	Enabled         bool             `mapstructure:"enabled"`
	PubSub          types.PubSubType `mapstructure:"pubsub"`
	Topic           string           `mapstructure:"topic"`
	MaxRetries      int              `mapstructure:"max_retries"`
	InitialInterval time.Duration    `mapstructure:"initial_interval"`
	MaxInterval     time.Duration    `mapstructure:"max_interval"`
	Multiplier      float64          `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration    `mapstructure:"max_elapsed_time"`
}

type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
	ClientID      string   `mapstructure:"client_id"`
	TLS           bool     `mapstructure:"tls"`
	UseSASL       bool     `mapstructure:"use_sasl"`
	SASLMechanism string   `mapstructure:"sasl_mechanism"`
	SASLUser      string   `mapstructure:"sasl_user"`
	SASLPassword  string   `mapstructure:"sasl_password"`
}

// S3Config is the destination of ledger audit exports
type S3Config struct {
	Enabled bool   `mapstructure:"enabled"`
	Region  string `mapstructure:"region"`
	Bucket  string `mapstructure:"bucket" validate:"required_if=Enabled true"`
	Prefix  string `mapstructure:"prefix"`
	// EndpointURL points at an S3 compatible store instead of AWS
	EndpointURL   string `mapstructure:"endpoint_url"`
	UsePathStyle  bool   `mapstructure:"use_path_style"`
	Compression   string `mapstructure:"compression" validate:"omitempty,oneof=gzip"`
	Encryption    string `mapstructure:"encryption" validate:"omitempty,oneof=AES256 aws:kms"`
	MaxFileSizeMB int    `mapstructure:"max_file_size_mb"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type PyroscopeConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	ServerAddress   string   `mapstructure:"server_address"`
	ApplicationName string   `mapstructure:"application_name"`
	BasicAuthUser   string   `mapstructure:"basic_auth_user"`
	BasicAuthPass   string   `mapstructure:"basic_auth_password"`
	SampleRate      uint32   `mapstructure:"sample_rate"`
	DisableGCRuns   bool     `mapstructure:"disable_gc_runs"`
	ProfileTypes    []string `mapstructure:"profile_types"`
}

func NewConfig() (*Configuration, error) {
	// .env is optional and only used for local development
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/billing")

	v.SetEnvPrefix("BILLING")
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

	// a map cannot be decoded from a single env var, so the keys arrive as json
	if raw := os.Getenv("BILLING_AUTH_API_KEY_KEYS"); raw != "" {
		keys := map[string]APIKeyDetails{}
		if err := jsoniter.UnmarshalFromString(raw, &keys); err != nil {
			return nil, fmt.Errorf("invalid BILLING_AUTH_API_KEY_KEYS: %w", err)
		}
		v.Set("auth.api_key.keys", keys)
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
	v.SetDefault("deployment.mode", types.ModeLocal)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", types.LogLevelInfo)
	v.SetDefault("auth.api_key.header", "x-api-key")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime_minutes", 30)

	v.SetDefault("stripe.max_retries", 2)
	v.SetDefault("stripe.timeout", 10*time.Second)
	v.SetDefault("stripe.rate_limit", 20)
	v.SetDefault("stripe.signature_tolerance", 5*time.Minute)

	v.SetDefault("billing.sandbox_mode", false)
	v.SetDefault("billing.sync_concurrency", 4)

	v.SetDefault("webhook.processing_timeout", 4*time.Second)
	v.SetDefault("webhook.max_body_bytes", 1<<20)
	v.SetDefault("webhook.event_retention", 30*24*time.Hour)

	v.SetDefault("notifications.enabled", true)
	v.SetDefault("notifications.pubsub", types.MemoryPubSub)
	v.SetDefault("notifications.topic", "billing_notifications")
	v.SetDefault("notifications.max_retries", 3)
	v.SetDefault("notifications.initial_interval", time.Second)
	v.SetDefault("notifications.max_interval", 10*time.Second)
	v.SetDefault("notifications.multiplier", 2.0)
	v.SetDefault("notifications.max_elapsed_time", time.Minute)

	v.SetDefault("s3.max_file_size_mb", 100)

	v.SetDefault("pyroscope.sample_rate", 100)
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}

	if err := c.Deployment.Mode.Validate(); err != nil {
		return err
	}

	if c.Notifications.Enabled {
		if err := c.Notifications.PubSub.Validate(); err != nil {
			return err
		}
	}

	if c.Billing.SandboxMode && c.Stripe.IsLiveKey() {
		return fmt.Errorf("billing.sandbox_mode cannot be enabled with a live processor key")
	}

	for _, p := range c.Billing.Plans {
		if err := p.BillingInterval.Validate(); err != nil {
			return fmt.Errorf("plan %q: %w", p.Name, err)
		}
	}

	return nil
}

// IsLiveKey reports whether the configured secret key moves real money
func (c StripeConfig) IsLiveKey() bool {
	return strings.HasPrefix(c.SecretKey, "sk_live_") || strings.HasPrefix(c.SecretKey, "rk_live_")
}

// GetDefaultConfig returns a default configuration for local development
// This is useful for running scripts or other non-web applications
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Auth:       AuthConfig{APIKey: APIKeyConfig{Header: "x-api-key"}},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Stripe: StripeConfig{
			MaxRetries:         2,
			Timeout:            10 * time.Second,
			SignatureTolerance: 5 * time.Minute,
		},
		Billing: BillingConfig{SyncConcurrency: 4},
		Webhook: WebhookConfig{
			ProcessingTimeout: 4 * time.Second,
			MaxBodyBytes:      1 << 20,
			EventRetention:    30 * 24 * time.Hour,
		},
		Notifications: NotificationsConfig{
			PubSub: types.MemoryPubSub,
			Topic:  "billing_notifications",
		},
	}
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

// GetURL returns the connection string in URL form, as expected by the migration driver
func (c PostgresConfig) GetURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.DBName,
		c.SSLMode,
	)
}
