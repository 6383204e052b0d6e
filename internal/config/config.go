package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultPublicBaseURL is the storefront origin used for redirect and callback URLs.
const DefaultPublicBaseURL = "https://revolution-ai.co.uk"

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	// PublicBaseURL is the externally visible origin of the storefront.
	PublicBaseURL string

	OTLPEndpoint  string
	Observability ObservabilityConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	SnowflakeNode int64

	Payment   PaymentConfig
	Stripe    StripeConfig
	Cryptomus CryptomusConfig

	Email EmailConfig
	SNS   SNSConfig
	Redis RedisConfig

	Notify  NotifyConfig
	Sweeper SweeperConfig

	CatalogFile     string
	AdminKeyHash    string
	MigrateOnStart  bool
	MigrationsTable string
}

type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string
	// OTelEnabled turns on the OTLP trace and metric exporters.
	OTelEnabled       bool
	OTelProtocol      string
	OTelSamplingRatio float64
}

type PaymentConfig struct {
	// Timeout bounds every outbound call to a payment backend.
	Timeout time.Duration
	// InsecureWebhooks disables webhook authenticity checks. Refused in production.
	InsecureWebhooks bool
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	APIURL        string
}

type CryptomusConfig struct {
	MerchantID string
	APIKey     string
	APIURL     string
}

type EmailConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	FromEmail  string
	FromName   string
	AdminEmail string
}

type SNSConfig struct {
	TopicARN string
	Region   string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type NotifyConfig struct {
	Timeout time.Duration
}

type SweeperConfig struct {
	Enabled    bool
	Interval   time.Duration
	PendingTTL time.Duration
	BatchSize  int
	JobTimeout time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")

	cfg := Config{
		AppName:       getenv("APP_SERVICE", "storefront"),
		AppVersion:    getenv("APP_VERSION", "0.1.0"),
		Environment:   environment,
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		PublicBaseURL: strings.TrimRight(strings.TrimSpace(getenv("PUBLIC_BASE_URL", DefaultPublicBaseURL)), "/"),
		OTLPEndpoint:  getenv("OTLP_ENDPOINT", "localhost:4317"),
		Observability: ObservabilityConfig{
			LogLevel:          strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
			LogFormat:         strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
			OTelEnabled:       getenvBool("OTEL_ENABLED", false),
			OTelProtocol:      strings.ToLower(strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
			OTelSamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "storefront"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "storefront.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		SnowflakeNode: getenvInt64("SNOWFLAKE_NODE", 1),

		Payment: PaymentConfig{
			Timeout:          getenvDuration("PAYMENT_TIMEOUT", 15*time.Second),
			InsecureWebhooks: getenvBool("PAYMENT_WEBHOOK_INSECURE", false),
		},
		Stripe: StripeConfig{
			SecretKey:     strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
			WebhookSecret: strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			APIURL:        strings.TrimSpace(getenv("STRIPE_API_URL", "")),
		},
		Cryptomus: CryptomusConfig{
			MerchantID: strings.TrimSpace(getenv("CRYPTOMUS_MERCHANT_ID", "")),
			APIKey:     strings.TrimSpace(getenv("CRYPTOMUS_API_KEY", "")),
			APIURL:     strings.TrimRight(strings.TrimSpace(getenv("CRYPTOMUS_API_URL", "https://api.cryptomus.com")), "/"),
		},
		Email: EmailConfig{
			Host:       strings.TrimSpace(getenv("SMTP_HOST", "")),
			Port:       getenvInt("SMTP_PORT", 587),
			Username:   strings.TrimSpace(getenv("SMTP_USERNAME", "")),
			Password:   getenv("SMTP_PASSWORD", ""),
			FromEmail:  strings.TrimSpace(getenv("SMTP_FROM_EMAIL", "noreply@revolution-ai.co.uk")),
			FromName:   getenv("SMTP_FROM_NAME", "Revolution AI"),
			AdminEmail: strings.TrimSpace(getenv("ADMIN_EMAIL", "")),
		},
		SNS: SNSConfig{
			TopicARN: strings.TrimSpace(getenv("SNS_TOPIC_ARN", "")),
			Region:   strings.TrimSpace(getenv("AWS_REGION", "")),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Notify: NotifyConfig{
			Timeout: getenvDuration("NOTIFY_TIMEOUT", 10*time.Second),
		},
		Sweeper: SweeperConfig{
			Enabled:    getenvBool("SWEEPER_ENABLED", true),
			Interval:   getenvDuration("SWEEPER_INTERVAL", 10*time.Minute),
			PendingTTL: getenvDuration("SWEEPER_PENDING_TTL", 26*time.Hour),
			BatchSize:  getenvInt("SWEEPER_BATCH_SIZE", 100),
			JobTimeout: getenvDuration("SWEEPER_JOB_TIMEOUT", 2*time.Minute),
		},

		CatalogFile:     strings.TrimSpace(getenv("CATALOG_FILE", "")),
		AdminKeyHash:    strings.TrimSpace(getenv("ADMIN_API_KEY_HASH", "")),
		MigrateOnStart:  getenvBool("MIGRATE_ON_START", true),
		MigrationsTable: getenv("MIGRATIONS_TABLE", "schema_migrations"),
	}

	return cfg
}

// IsProduction reports whether the service runs in the production environment.
func (c Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt(key string, def int) int {
	return int(getenvInt64(key, int64(def)))
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
