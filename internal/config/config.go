package config

import (
	"os"
	"strconv"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// ExtractorConfig holds settings for the external extraction provider.
type ExtractorConfig struct {
	Endpoint   string
	APIKey     string
	TimeoutSec int
}

// ProcessingConfig holds orchestrator settings.
type ProcessingConfig struct {
	// MaxRetries caps RetryProcessing invocations per document; 0 disables the ceiling.
	MaxRetries int
	// AutoProcess enqueues freshly uploaded documents for processing.
	AutoProcess bool
	Workers     int
	QueueSize   int
	// JobTimeoutSec bounds one queued processing run end to end.
	JobTimeoutSec int
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost    string
	Port       string
	Database   DatabaseConfig
	MinIO      MinIOConfig
	Extractor  ExtractorConfig
	Processing ProcessingConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost: getEnv("APP_HOST", "localhost:8080"),
		Port:    getEnv("PORT", "8080"), // default only for non-sensitive value
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Extractor: ExtractorConfig{
			Endpoint:   getEnv("EXTRACTOR_ENDPOINT", ""),
			APIKey:     getEnv("EXTRACTOR_API_KEY", ""),
			TimeoutSec: getEnvInt("EXTRACTOR_TIMEOUT_SEC", 60),
		},
		Processing: ProcessingConfig{
			MaxRetries:    getEnvInt("PROCESS_MAX_RETRIES", 5),
			AutoProcess:   getEnvBool("PROCESS_ON_UPLOAD", true),
			Workers:       getEnvInt("PROCESS_WORKERS", 4),
			QueueSize:     getEnvInt("PROCESS_QUEUE_SIZE", 256),
			JobTimeoutSec: getEnvInt("PROCESS_JOB_TIMEOUT_SEC", 180),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}
