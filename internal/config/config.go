// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Blob     BlobConfig
	Redis    RedisConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
	MaxUploadMB  int
}

// DatabaseConfig holds database connection settings.
// Driver is "sqlite" (default, dev) or "postgres".
type DatabaseConfig struct {
	Driver   string
	Path     string // sqlite file path
	DSNRaw   string // optional full DSN, overrides the parts below
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	Debug    bool
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev           bool
	Migrations    bool
	SessionSecret string
	CatalogPath   string
	// Bootstrap superuser created by `labdesk seed` when both are set.
	AdminUsername string
	AdminPassword string
}

// BlobConfig selects where uploaded documents and receipts are stored.
type BlobConfig struct {
	Driver    string // fs|s3|memory
	Root      string
	Bucket    string
	Region    string
	Endpoint  string
	PathStyle bool
	// Static S3 credentials; the default AWS chain is used when empty.
	AccessKeyID     string
	SecretAccessKey string
}

// RedisConfig enables the shared role cache when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string
	Format string
}

// IsPostgres reports whether the postgres driver is selected.
func (d DatabaseConfig) IsPostgres() bool {
	return strings.EqualFold(d.Driver, "postgres")
}

// DSN returns the connection string for the configured driver.
func (d DatabaseConfig) DSN() string {
	if d.DSNRaw != "" {
		return d.DSNRaw
	}
	if !d.IsPostgres() {
		return d.Path
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 30),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
			MaxUploadMB:  getEnvInt("MAX_UPLOAD_MB", 20),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "sqlite"),
			Path:     getEnv("DB_PATH", "labdesk.db"),
			DSNRaw:   os.Getenv("DATABASE_DSN"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "labdesk"),
			Password: getEnv("DB_PASSWORD", "labdesk"),
			DBName:   getEnv("DB_NAME", "labdesk"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Debug:    getEnvBool("DB_DEBUG", false),
		},
		App: AppConfig{
			Dev:           getEnvBool("DEV", false),
			Migrations:    getEnvBool("MIGRATIONS", false),
			SessionSecret: getEnv("SESSION_SECRET", "devsessionsecret"),
			CatalogPath:   os.Getenv("CATALOG_PATH"),
			AdminUsername: os.Getenv("ADMIN_USERNAME"),
			AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		},
		Blob: BlobConfig{
			Driver:    getEnv("BLOB_DRIVER", "fs"),
			Root:      getEnv("BLOB_FS_ROOT", "./media"),
			Bucket:    os.Getenv("BLOB_S3_BUCKET"),
			Region:    getEnv("BLOB_S3_REGION", "us-east-1"),
			Endpoint:  os.Getenv("BLOB_S3_ENDPOINT"),
			PathStyle: getEnvBool("BLOB_S3_PATH_STYLE", false),

			AccessKeyID:     os.Getenv("BLOB_S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("BLOB_S3_SECRET_ACCESS_KEY"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}
