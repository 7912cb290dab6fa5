package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendPostgres = "postgres"
	BackendREST     = "rest"
)

type Config struct {
	Addr                      string
	Environment               string
	LogLevel                  string
	DatabaseURL               string
	DBMaxConns                int
	JWTSecret                 string
	TokenTTL                  time.Duration
	LeaveBackend              string
	BackendAPIURL             string
	BackendAPIToken           string
	BackendTimeout            time.Duration
	RoleLoadTimeout           time.Duration
	SessionTTL                time.Duration
	RunMigrations             bool
	MigrationsDir             string
	RunSeed                   bool
	SeedHREmail               string
	SeedHRPassword            string
	MaxBodyBytes              int64
	RateLimitPerMinute        int
	CreditProvisionInterval   time.Duration
	RetentionInterval         time.Duration
	AuditRetentionDays        int
	NotificationRetentionDays int
	IdempotencyRetentionDays  int
	JobRunRetentionDays       int
	MetricsEnabled            bool
	DataEncryptionKey         string
	NATSURL                   string
	NATSSubjectPrefix         string
	EmailEnabled              bool
	EmailFrom                 string
	SMTPHost                  string
	SMTPPort                  int
	SMTPUser                  string
	SMTPPassword              string
	SMTPUseTLS                bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:                      getEnv("APP_ADDR", ":8080"),
		Environment:               getEnv("APP_ENV", "development"),
		LogLevel:                  getEnv("LOG_LEVEL", "info"),
		DatabaseURL:               getEnv("DATABASE_URL", ""),
		DBMaxConns:                getEnvInt("DB_MAX_CONNS", 10),
		JWTSecret:                 getEnv("JWT_SECRET", ""),
		TokenTTL:                  getEnvDuration("TOKEN_TTL", 12*time.Hour),
		LeaveBackend:              strings.ToLower(getEnv("LEAVE_BACKEND", BackendPostgres)),
		BackendAPIURL:             getEnv("BACKEND_API_URL", ""),
		BackendAPIToken:           getEnv("BACKEND_API_TOKEN", ""),
		BackendTimeout:            getEnvDuration("BACKEND_TIMEOUT", 15*time.Second),
		RoleLoadTimeout:           getEnvDuration("ROLE_LOAD_TIMEOUT", 3*time.Second),
		SessionTTL:                getEnvDuration("SESSION_TTL", 10*time.Minute),
		RunMigrations:             getEnvBool("RUN_MIGRATIONS", true),
		MigrationsDir:             getEnv("MIGRATIONS_DIR", "migrations"),
		RunSeed:                   getEnvBool("RUN_SEED", true),
		SeedHREmail:               getEnv("SEED_HR_EMAIL", ""),
		SeedHRPassword:            getEnv("SEED_HR_PASSWORD", ""),
		MaxBodyBytes:              int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		RateLimitPerMinute:        getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		CreditProvisionInterval:   getEnvDuration("CREDIT_PROVISION_INTERVAL", 24*time.Hour),
		RetentionInterval:         getEnvDuration("RETENTION_INTERVAL", 24*time.Hour),
		AuditRetentionDays:        getEnvInt("AUDIT_RETENTION_DAYS", 730),
		NotificationRetentionDays: getEnvInt("NOTIFICATION_RETENTION_DAYS", 180),
		IdempotencyRetentionDays:  getEnvInt("IDEMPOTENCY_RETENTION_DAYS", 2),
		JobRunRetentionDays:       getEnvInt("JOB_RUN_RETENTION_DAYS", 90),
		MetricsEnabled:            getEnvBool("METRICS_ENABLED", true),
		DataEncryptionKey:         getEnv("DATA_ENCRYPTION_KEY", ""),
		NATSURL:                   getEnv("NATS_URL", ""),
		NATSSubjectPrefix:         getEnv("NATS_SUBJECT_PREFIX", "hrims"),
		EmailEnabled:              getEnvBool("EMAIL_ENABLED", false),
		EmailFrom:                 getEnv("EMAIL_FROM", "no-reply@hrims.local"),
		SMTPHost:                  getEnv("SMTP_HOST", ""),
		SMTPPort:                  getEnvInt("SMTP_PORT", 587),
		SMTPUser:                  getEnv("SMTP_USER", ""),
		SMTPPassword:              getEnv("SMTP_PASSWORD", ""),
		SMTPUseTLS:                getEnvBool("SMTP_USE_TLS", true),
	}
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c Config) UsesPostgres() bool {
	return c.LeaveBackend == BackendPostgres
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c Config) Validate() error {
	switch c.LeaveBackend {
	case BackendPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("DATABASE_URL is required when LEAVE_BACKEND=postgres")
		}
	case BackendREST:
		if strings.TrimSpace(c.BackendAPIURL) == "" {
			return errors.New("BACKEND_API_URL is required when LEAVE_BACKEND=rest")
		}
	default:
		return fmt.Errorf("LEAVE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendREST, c.LeaveBackend)
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		if c.IsProduction() {
			return errors.New("JWT_SECRET must be set to a strong value in production")
		}
	}
	if c.IsProduction() && c.RunSeed && strings.TrimSpace(c.SeedHRPassword) == "" && c.SeedHREmail != "" {
		return errors.New("SEED_HR_PASSWORD must be set or RUN_SEED disabled in production")
	}
	if c.MaxBodyBytes < 1024 {
		return errors.New("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return errors.New("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.EmailEnabled && strings.TrimSpace(c.SMTPHost) == "" {
		return errors.New("SMTP_HOST is required when EMAIL_ENABLED=true")
	}
	if c.DatabaseURL != "" && c.DBMaxConns <= 0 {
		return errors.New("DB_MAX_CONNS must be positive")
	}
	if c.RoleLoadTimeout <= 0 {
		return errors.New("ROLE_LOAD_TIMEOUT must be positive")
	}
	return nil
}
