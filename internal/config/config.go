// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	defaultJWTSecret     = "change-me-jwt-secret-in-production"
	defaultSessionSecret = "change-me-session-secret-in-production"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	Server      ServerConfig      `envPrefix:"SERVER_"`
	Database    DatabaseConfig    `envPrefix:"DB_"`
	Session     SessionConfig     `envPrefix:"SESSION_"`
	JWT         JWTConfig         `envPrefix:"JWT_"`
	Redis       RedisConfig       `envPrefix:"REDIS_"`
	Cache       CacheConfig       `envPrefix:"CACHE_"`
	AWS         AWSConfig         `envPrefix:"AWS_"`
	Storage     StorageConfig     `envPrefix:"STORAGE_"`
	Email       EmailConfig       `envPrefix:"EMAIL_"`
	Outbox      OutboxConfig      `envPrefix:"OUTBOX_"`
	Certificate CertificateConfig `envPrefix:"CERTIFICATE_"`
	GeoIP       GeoIPConfig       `envPrefix:"GEOIP_"`
	Frontend    FrontendConfig    `envPrefix:"FRONTEND_"`
	Admin       AdminConfig       `envPrefix:"ADMIN_"`
	RateLimit   RateLimitConfig   `envPrefix:"RATE_LIMIT_"`
}

type ServerConfig struct {
	Port         string        `env:"PORT" envDefault:"8080"`
	Host         string        `env:"HOST" envDefault:"localhost"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	// MaxUploadMB bounds multipart bodies.
	MaxUploadMB int `env:"MAX_UPLOAD_MB" envDefault:"8"`
}

type DatabaseConfig struct {
	Driver       string `env:"DRIVER" envDefault:"postgres"`
	Host         string `env:"HOST" envDefault:"localhost"`
	Port         string `env:"PORT" envDefault:"5432"`
	User         string `env:"USER" envDefault:"postgres"`
	Password     string `env:"PASSWORD"`
	Database     string `env:"NAME" envDefault:"sap_technologies"`
	SSLMode      string `env:"SSL_MODE" envDefault:"disable"`
	SQLitePath   string `env:"SQLITE_PATH" envDefault:"./data/sap.db"`
	MaxOpenConns int    `env:"MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int    `env:"MAX_IDLE_CONNS" envDefault:"25"`
	MaxLifetime  int    `env:"MAX_LIFETIME" envDefault:"300"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"warn"`
}

type SessionConfig struct {
	CookieName  string        `env:"COOKIE_NAME" envDefault:"sap_session"`
	Lifetime    time.Duration `env:"LIFETIME" envDefault:"24h"`
	IdleTimeout time.Duration `env:"IDLE_TIMEOUT" envDefault:"2h"`
	// Secret keys the cross-origin request protection.
	Secret string `env:"SECRET" envDefault:"change-me-session-secret-in-production"`
}

type JWTConfig struct {
	SecretKey      string        `env:"SECRET" envDefault:"change-me-jwt-secret-in-production"`
	UnsubscribeTTL time.Duration `env:"UNSUBSCRIBE_TTL" envDefault:"8760h"`
}

type RedisConfig struct {
	URL    string `env:"URL"`
	Prefix string `env:"PREFIX" envDefault:"sap:"`
}

type CacheConfig struct {
	NominationTTL time.Duration `env:"NOMINATION_TTL" envDefault:"5m"`
	CategoryTTL   time.Duration `env:"CATEGORY_TTL" envDefault:"10m"`
	CleanupEvery  time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1m"`
}

type AWSConfig struct {
	Region          string `env:"REGION" envDefault:"us-east-1"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
	S3Bucket        string `env:"S3_BUCKET" envDefault:"sap-technologies-assets"`
	CloudFrontURL   string `env:"CLOUDFRONT_URL"`
}

type StorageConfig struct {
	LocalPath string `env:"LOCAL_PATH" envDefault:"./uploads"`
	// PublicPath is the URL prefix the local directory is served under.
	PublicPath string `env:"PUBLIC_PATH" envDefault:"/uploads"`
}

type EmailConfig struct {
	Provider       string `env:"PROVIDER" envDefault:"log"`
	FromEmail      string `env:"FROM" envDefault:"noreply@sap-technologies.com"`
	FromName       string `env:"FROM_NAME" envDefault:"SAP Technologies"`
	AdminEmail     string `env:"ADMIN_ADDRESS" envDefault:"admin@sap-technologies.com"`
	ResendAPIKey   string `env:"RESEND_API_KEY"`
	SendGridAPIKey string `env:"SENDGRID_API_KEY"`
	SMTPHost       string `env:"SMTP_HOST"`
	SMTPPort       string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername   string `env:"SMTP_USERNAME"`
	SMTPPassword   string `env:"SMTP_PASSWORD"`
}

type OutboxConfig struct {
	PollInterval   time.Duration `env:"POLL_INTERVAL" envDefault:"5s"`
	BatchSize      int           `env:"BATCH_SIZE" envDefault:"20"`
	MaxAttempts    int           `env:"MAX_ATTEMPTS" envDefault:"5"`
	InitialBackoff time.Duration `env:"INITIAL_BACKOFF" envDefault:"30s"`
	MaxBackoff     time.Duration `env:"MAX_BACKOFF" envDefault:"1h"`
	TaskTimeout    time.Duration `env:"TASK_TIMEOUT" envDefault:"60s"`
	RetentionDays  int           `env:"RETENTION_DAYS" envDefault:"7"`
}

type CertificateConfig struct {
	Issuer    string `env:"ISSUER" envDefault:"SAP Technologies"`
	Signatory string `env:"SIGNATORY" envDefault:"Awards Committee"`
	AwardName string `env:"AWARD_NAME" envDefault:"SAP Technologies Awards"`
}

type GeoIPConfig struct {
	DatabasePath string `env:"DB_PATH"`
}

type FrontendConfig struct {
	BaseURL        string   `env:"BASE_URL" envDefault:"http://localhost:3000"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:5173"`
}

type AdminConfig struct {
	Email    string `env:"EMAIL" envDefault:"admin@sap-technologies.com"`
	Password string `env:"PASSWORD" envDefault:"ChangeMe123!"`
	Name     string `env:"NAME" envDefault:"Site Administrator"`
}

type RateLimitConfig struct {
	Enabled bool `env:"ENABLED" envDefault:"true"`
	// PerSecond and Burst drive the general limiter; dedicated limiters are derived from them.
	PerSecond float64 `env:"PER_SECOND" envDefault:"10"`
	Burst     int     `env:"BURST" envDefault:"20"`
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	config.Email.Provider = strings.ToLower(strings.TrimSpace(config.Email.Provider))
	config.Database.Driver = strings.ToLower(strings.TrimSpace(config.Database.Driver))

	return config, config.Validate()
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	switch c.Email.Provider {
	case "log", "smtp", "resend", "sendgrid":
	default:
		return fmt.Errorf("unsupported email provider %q", c.Email.Provider)
	}

	if c.Email.Provider == "resend" && c.Email.ResendAPIKey == "" {
		return fmt.Errorf("EMAIL_RESEND_API_KEY is required for the resend provider")
	}
	if c.Email.Provider == "sendgrid" && c.Email.SendGridAPIKey == "" {
		return fmt.Errorf("EMAIL_SENDGRID_API_KEY is required for the sendgrid provider")
	}
	if c.Email.Provider == "smtp" && c.Email.SMTPHost == "" {
		return fmt.Errorf("EMAIL_SMTP_HOST is required for the smtp provider")
	}

	if c.Outbox.MaxAttempts < 1 {
		return fmt.Errorf("OUTBOX_MAX_ATTEMPTS must be at least 1")
	}

	if !c.IsProduction() {
		return nil
	}

	if c.JWT.SecretKey == defaultJWTSecret || len(c.JWT.SecretKey) < 32 {
		return fmt.Errorf("JWT secret key must be changed and at least 32 characters in production")
	}

	if c.Session.Secret == defaultSessionSecret || len(c.Session.Secret) < 32 {
		return fmt.Errorf("session secret must be changed and at least 32 characters in production")
	}

	if c.Admin.Password == "ChangeMe123!" {
		return fmt.Errorf("default admin password must be changed in production")
	}

	if c.Database.Driver == "postgres" && c.Database.Password == "" {
		return fmt.Errorf("database password is required in production")
	}

	if c.Email.Provider == "log" {
		return fmt.Errorf("a real email provider is required in production")
	}

	return nil
}
