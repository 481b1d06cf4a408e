package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        string
	DatabaseURL string
	LogLevel    string
	ClientURL   string

	// TrustedProxies lists the IPs or CIDRs allowed to set X-Forwarded-For.
	TrustedProxies []string
	// AdminToken enables the rate-limit admin routes when set.
	AdminToken string

	StoreBackend string
	BlobBackend  string

	// S3
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3BucketName      string
	S3UseSSL          bool

	// Google Cloud
	GCPProjectID        string
	GCSBucketName       string
	FirestoreDatabaseID string
	DocumentAILocation  string
	DocumentAIProcessor string
	VertexAILocation    string
	VertexAIModel       string

	// Generation
	GenerationProvider    string
	OpenRouterAPIKey      string
	OpenRouterModel       string
	OpenRouterBaseURL     string
	GenerationRPS         float64
	GenerationBurst       int
	BatchQuestionInterval time.Duration

	// Upload limits
	MaxFileSize int64

	ShutdownTimeout time.Duration
	RateLimits      map[string]RateLimit
}

type RateLimit struct {
	Points          int `yaml:"points"`
	DurationSeconds int `yaml:"duration_seconds"`
}

func (r RateLimit) Duration() time.Duration {
	return time.Duration(r.DurationSeconds) * time.Second
}

type fileConfig struct {
	RateLimits map[string]RateLimit `yaml:"rate_limits"`
}

const (
	StoreSQLite    = "sqlite"
	StoreFirestore = "firestore"
	StoreMemory    = "memory"

	BlobS3     = "s3"
	BlobGCS    = "gcs"
	BlobMemory = "memory"

	ProviderVertex     = "vertex"
	ProviderOpenRouter = "openrouter"
)

// DefaultRateLimits mirrors the budgets the service has always shipped with.
func DefaultRateLimits() map[string]RateLimit {
	return map[string]RateLimit{
		"general": {Points: 100, DurationSeconds: 900},
		"upload":  {Points: 10, DurationSeconds: 900},
		"ai":      {Points: 20, DurationSeconds: 3600},
		"qa":      {Points: 50, DurationSeconds: 3600},
	}
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:                  getEnv("PORT", "8080"),
		DatabaseURL:           getEnv("DATABASE_URL", "data/legalease.db"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		ClientURL:             getEnv("CLIENT_URL", "http://localhost:3002"),
		TrustedProxies:        getEnvAsList("TRUSTED_PROXIES"),
		AdminToken:            getEnv("ADMIN_TOKEN", ""),
		StoreBackend:          getEnv("STORE_BACKEND", StoreSQLite),
		BlobBackend:           getEnv("BLOB_BACKEND", BlobS3),
		S3Endpoint:            getEnv("S3_ENDPOINT", "localhost:9000"),
		S3AccessKeyID:         getEnv("S3_ACCESS_KEY_ID", "minioadmin"),
		S3SecretAccessKey:     getEnv("S3_SECRET_ACCESS_KEY", "minioadmin"),
		S3BucketName:          getEnv("S3_BUCKET_NAME", "documents"),
		S3UseSSL:              getEnvAsBool("S3_USE_SSL", false),
		GCPProjectID:          getEnv("GOOGLE_CLOUD_PROJECT_ID", ""),
		GCSBucketName:         getEnv("GCS_BUCKET_NAME", ""),
		FirestoreDatabaseID:   getEnv("FIRESTORE_DATABASE_ID", ""),
		DocumentAILocation:    getEnv("DOCUMENT_AI_LOCATION", "us"),
		DocumentAIProcessor:   getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		VertexAILocation:      getEnv("VERTEX_AI_LOCATION", "us-central1"),
		VertexAIModel:         getEnv("VERTEX_AI_MODEL", "gemini-2.5-flash"),
		GenerationProvider:    getEnv("GENERATION_PROVIDER", ProviderVertex),
		OpenRouterAPIKey:      getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterModel:       getEnv("OPENROUTER_MODEL", "openai/gpt-4o-mini"),
		OpenRouterBaseURL:     getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		GenerationRPS:         getEnvAsFloat("GENERATION_RPS", 2),
		GenerationBurst:       getEnvAsInt("GENERATION_BURST", 4),
		BatchQuestionInterval: getEnvAsDuration("BATCH_QUESTION_INTERVAL", time.Second),
		MaxFileSize:           int64(getEnvAsInt("MAX_FILE_SIZE", 10*1024*1024)),
		ShutdownTimeout:       getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		RateLimits:            DefaultRateLimits(),
	}

	// The general class can be tuned without a config file.
	general := cfg.RateLimits["general"]
	general.Points = getEnvAsInt("RATE_LIMIT_MAX_REQUESTS", general.Points)
	general.DurationSeconds = int(getEnvAsDuration("RATE_LIMIT_WINDOW", general.Duration()) / time.Second)
	cfg.RateLimits["general"] = general

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	for class, limit := range fc.RateLimits {
		c.RateLimits[strings.ToLower(class)] = limit
	}
	return nil
}

// Validate checks backend selections and the credentials each one needs.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreSQLite:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the sqlite store")
		}
	case StoreFirestore:
		if c.GCPProjectID == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT_ID is required for the firestore store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.BlobBackend {
	case BlobS3:
		if c.S3Endpoint == "" || c.S3BucketName == "" {
			return fmt.Errorf("S3_ENDPOINT and S3_BUCKET_NAME are required for s3 blob storage")
		}
	case BlobGCS:
		if c.GCSBucketName == "" {
			return fmt.Errorf("GCS_BUCKET_NAME is required for gcs blob storage")
		}
	case BlobMemory:
	default:
		return fmt.Errorf("unknown BLOB_BACKEND %q", c.BlobBackend)
	}

	switch c.GenerationProvider {
	case ProviderVertex:
		if c.GCPProjectID == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT_ID is required for the vertex provider")
		}
	case ProviderOpenRouter:
		if c.OpenRouterAPIKey == "" {
			return fmt.Errorf("OPENROUTER_API_KEY is required")
		}
	default:
		return fmt.Errorf("unknown GENERATION_PROVIDER %q", c.GenerationProvider)
	}

	if c.DocumentAIProcessor != "" && c.GCPProjectID == "" {
		return fmt.Errorf("GOOGLE_CLOUD_PROJECT_ID is required when DOCUMENT_AI_PROCESSOR_ID is set")
	}

	for class, limit := range c.RateLimits {
		if limit.Points <= 0 || limit.DurationSeconds <= 0 {
			return fmt.Errorf("rate limit %q needs positive points and duration_seconds", class)
		}
	}

	for _, proxy := range c.TrustedProxies {
		if _, err := ParseProxy(proxy); err != nil {
			return fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", proxy, err)
		}
	}

	if c.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated value, dropping empty entries.
func getEnvAsList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ParseProxy accepts a bare IP or a CIDR and returns it as a prefix.
func ParseProxy(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		prefix, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, err
		}
		return prefix.Masked(), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("15m") or plain seconds ("900").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
