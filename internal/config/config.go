// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/riwatch/backend/internal/analyzer"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Azure        AzureConfig
	Analysis     analyzer.Config
	Jobs         JobsConfig
	Notification NotificationConfig
	Archive      ArchiveConfig
	Auth         AuthConfig
	Logging      LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// AzureConfig holds Azure ingestion settings.
type AzureConfig struct {
	Enabled        bool
	TenantID       string
	ClientID       string
	ClientSecret   string
	SubscriptionID string
}

// JobsConfig holds background job settings.
type JobsConfig struct {
	UsageSyncSchedule string
	AnalyzeSchedule   string
	JobTimeout        time.Duration
	AnalyzeWorkers    int
}

// NotificationConfig holds report delivery settings.
type NotificationConfig struct {
	EmailSMTPHost    string
	EmailSMTPPort    int
	EmailFrom        string
	EmailPassword    string
	LogicAppEndpoint string
}

// ArchiveConfig holds report archive settings for S3-compatible storage.
type ArchiveConfig struct {
	Enabled         bool
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	// APIKeyHash is a bcrypt hash of the API key. Empty disables auth.
	APIKeyHash string
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "riwatch"),
			Password:     getEnv("DB_PASSWORD", ""),
			Name:         getEnv("DB_NAME", "riwatch"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvDuration("DB_MAX_LIFETIME", 5*time.Minute),
		},
		Azure: AzureConfig{
			Enabled:        getEnvBool("AZURE_ENABLED", false),
			TenantID:       getEnv("AZURE_TENANT_ID", ""),
			ClientID:       getEnv("AZURE_CLIENT_ID", ""),
			ClientSecret:   getEnv("AZURE_CLIENT_SECRET", ""),
			SubscriptionID: getEnv("AZURE_SUBSCRIPTION_ID", ""),
		},
		Analysis: analyzer.Config{
			WindowDays:                 getEnvInt("ANALYSIS_WINDOW_DAYS", 7),
			MinUtilizationThreshold:    getEnvFloat("MIN_UTILIZATION_THRESHOLD", 60),
			ExpiryWarningDays:          getEnvInt("EXPIRY_WARNING_DAYS", 30),
			UnderutilizedDaysThreshold: getEnvInt("UNDERUTILIZED_DAYS_THRESHOLD", 3),
			UnusedDaysThreshold:        getEnvInt("UNUSED_DAYS_THRESHOLD", 3),
			DefaultRegion:              getEnv("DEFAULT_REGION", "eastus"),
			DefaultSKU:                 getEnv("DEFAULT_SKU", "Standard_DS1_v2"),
			DefaultRecipient:           getEnv("DEFAULT_EMAIL_RECIPIENT", ""),
		},
		Jobs: JobsConfig{
			UsageSyncSchedule: getEnv("JOB_USAGE_SYNC", "0 0 5 * * *"),
			AnalyzeSchedule:   getEnv("JOB_ANALYZE", "0 0 7 * * *"),
			JobTimeout:        getEnvDuration("JOB_TIMEOUT", 30*time.Minute),
			AnalyzeWorkers:    getEnvInt("JOB_ANALYZE_WORKERS", 8),
		},
		Notification: NotificationConfig{
			EmailSMTPHost:    getEnv("NOTIFICATION_EMAIL_SMTP_HOST", ""),
			EmailSMTPPort:    getEnvInt("NOTIFICATION_EMAIL_SMTP_PORT", 587),
			EmailFrom:        getEnv("NOTIFICATION_EMAIL_FROM", ""),
			EmailPassword:    getEnv("NOTIFICATION_EMAIL_PASSWORD", ""),
			LogicAppEndpoint: getEnv("NOTIFICATION_LOGICAPP_ENDPOINT", ""),
		},
		Archive: ArchiveConfig{
			Enabled:         getEnvBool("ARCHIVE_ENABLED", false),
			Bucket:          getEnv("ARCHIVE_BUCKET", ""),
			Prefix:          getEnv("ARCHIVE_PREFIX", "ri-reports"),
			Region:          getEnv("ARCHIVE_REGION", "us-east-1"),
			Endpoint:        getEnv("ARCHIVE_ENDPOINT", ""),
			AccessKeyID:     getEnv("ARCHIVE_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("ARCHIVE_SECRET_ACCESS_KEY", ""),
		},
		Auth: AuthConfig{
			APIKeyHash: getEnv("API_KEY_HASH", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if err := c.Analysis.Validate(); err != nil {
		return err
	}
	if c.Azure.Enabled {
		if c.Azure.TenantID == "" || c.Azure.ClientID == "" || c.Azure.ClientSecret == "" || c.Azure.SubscriptionID == "" {
			return fmt.Errorf("AZURE_TENANT_ID, AZURE_CLIENT_ID, AZURE_CLIENT_SECRET and AZURE_SUBSCRIPTION_ID are required when AZURE_ENABLED is set")
		}
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return fmt.Errorf("ARCHIVE_BUCKET is required when ARCHIVE_ENABLED is set")
	}
	return nil
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// Helper functions
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
