package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string
	Port   string

	RedisURL string
	JobTTL   time.Duration

	RateLimitMax    int
	RateLimitWindow time.Duration

	EventBackend string
	RabbitMQURL  string

	StorageBackend     string
	StoragePath        string
	StorageBaseURL     string
	MinIOEndpoint      string
	MinIOAccessKey     string
	MinIOSecretKey     string
	MinIOBucket        string
	MinIOUseSSL        bool
	GCSBucket          string
	GCSCredentialsFile string

	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIModel      string
	OpenAITimeout    time.Duration
	OpenAIMaxRetries int
	OpenAIRPS        float64

	DatabaseURL string
	CatalogPath string

	WorkerConcurrency int
	MaxUploadBytes    int64
	ImageMaxDimension int
	CORSOrigins       []string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

const (
	EventBackendLocal = "local"
	EventBackendAMQP  = "amqp"

	StorageBackendFile  = "file"
	StorageBackendMinIO = "minio"
	StorageBackendGCS   = "gcs"
)

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               port,
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		JobTTL:             getEnvDuration("JOB_TTL", 7*24*time.Hour),
		RateLimitMax:       getEnvInt("RATE_LIMIT_MAX", 5),
		RateLimitWindow:    getEnvDuration("RATE_LIMIT_WINDOW", 5*time.Minute),
		EventBackend:       strings.ToLower(getEnv("EVENT_BACKEND", EventBackendLocal)),
		RabbitMQURL:        os.Getenv("RABBITMQ_URL"),
		StorageBackend:     strings.ToLower(getEnv("STORAGE_BACKEND", StorageBackendFile)),
		StoragePath:        getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:     getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"),
		MinIOEndpoint:      os.Getenv("MINIO_ENDPOINT"),
		MinIOAccessKey:     os.Getenv("MINIO_ACCESS_KEY"),
		MinIOSecretKey:     os.Getenv("MINIO_SECRET_KEY"),
		MinIOBucket:        getEnv("MINIO_BUCKET", "tryon"),
		MinIOUseSSL:        getEnvBool("MINIO_USE_SSL", false),
		GCSBucket:          os.Getenv("GCS_BUCKET"),
		GCSCredentialsFile: os.Getenv("GCS_CREDENTIALS_FILE"),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:        getEnv("OPENAI_MODEL", "gpt-image-1"),
		OpenAITimeout:      getEnvDuration("OPENAI_TIMEOUT", 3*time.Minute),
		OpenAIMaxRetries:   getEnvInt("OPENAI_MAX_RETRIES", 2),
		OpenAIRPS:          getEnvFloat("OPENAI_RPS", 1),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		CatalogPath:        os.Getenv("CATALOG_PATH"),
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 4),
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_BYTES", 15<<20)),
		ImageMaxDimension:  getEnvInt("IMAGE_MAX_DIMENSION", 1024),
		CORSOrigins:        splitList(os.Getenv("CORS_ORIGINS")),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.RateLimitMax <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_MAX must be positive")
	}
	if cfg.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}

	switch cfg.EventBackend {
	case EventBackendLocal:
	case EventBackendAMQP:
		if cfg.RabbitMQURL == "" {
			return nil, fmt.Errorf("RABBITMQ_URL is required when EVENT_BACKEND=amqp")
		}
	default:
		return nil, fmt.Errorf("unsupported EVENT_BACKEND %q", cfg.EventBackend)
	}

	switch cfg.StorageBackend {
	case StorageBackendFile:
	case StorageBackendMinIO:
		if cfg.MinIOEndpoint == "" {
			return nil, fmt.Errorf("MINIO_ENDPOINT is required when STORAGE_BACKEND=minio")
		}
	case StorageBackendGCS:
		if cfg.GCSBucket == "" {
			return nil, fmt.Errorf("GCS_BUCKET is required when STORAGE_BACKEND=gcs")
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = 1
	}

	return cfg, nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c != nil && strings.EqualFold(c.AppEnv, "production")
}

// EnvTag is the job id prefix for the current environment.
func (c *Config) EnvTag() string {
	if c.IsProduction() {
		return "p"
	}
	return "d"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
