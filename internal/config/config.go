package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends selectable through STORAGE_BACKEND.
const (
	StorageLocal = "local"
	StorageMinIO = "minio"
)

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// StorageConfig selects where raw uploaded files are kept.
type StorageConfig struct {
	Backend   string
	UploadDir string
	MinIO     MinIOConfig
}

// OpenAIConfig holds settings for the OpenAI-compatible completion API.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	TimeoutSec int
}

// Timeout returns the outbound request timeout as a duration.
func (c OpenAIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	Port               string
	TimeZone           string
	StaticDir          string
	MaxUploadBytes     int64
	AllowedExtensions  []string
	CORSAllowOrigins   string
	StrictCompatErrors bool
	Storage            StorageConfig
	OpenAI             OpenAIConfig
}

// Location resolves TimeZone, falling back to UTC when it is unknown.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		Port:               getEnv("PORT", "5000"),
		TimeZone:           getEnv("APP_TIMEZONE", "UTC"),
		StaticDir:          getEnv("STATIC_DIR", "frontend/build"),
		MaxUploadBytes:     getEnvInt64("MAX_UPLOAD_BYTES", 16*1024*1024),
		AllowedExtensions:  getEnvList("ALLOWED_EXTENSIONS", []string{"txt", "pdf", "docx", "json", "csv"}),
		CORSAllowOrigins:   getEnv("CORS_ALLOW_ORIGINS", "*"),
		StrictCompatErrors: getEnvBool("STRICT_COMPAT_ERRORS", false),
		Storage: StorageConfig{
			Backend:   strings.ToLower(getEnv("STORAGE_BACKEND", StorageLocal)),
			UploadDir: getEnv("UPLOAD_DIR", "uploads"),
			MinIO: MinIOConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", ""),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			},
		},
		OpenAI: OpenAIConfig{
			APIKey:     getEnv("OPENAI_API_KEY", ""),
			BaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:      getEnv("OPENAI_MODEL", "gpt-4o"),
			MaxTokens:  getEnvInt("OPENAI_MAX_TOKENS", 1000),
			TimeoutSec: getEnvInt("OPENAI_TIMEOUT_SEC", 60),
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

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil && i > 0 {
			return i
		}
	}
	return def
}

// getEnvList splits a comma separated value, lowercases and trims each item,
// and drops empty items and leading dots.
func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	out := make([]string, 0)
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(item)), ".")
		if item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
