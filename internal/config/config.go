package config

import (
	"os"
	"strconv"
	"time"

	"doc-extractor/internal/domain"
)

// AppConfig implements the domain.Config interface
type AppConfig struct {
	ServerPort string
	LogLevel   string

	SupabaseURL string
	SupabaseKey string

	VertexProjectID string
	VertexLocation  string
	VisionModelName string

	PrimaryLayoutURL   string
	PrimaryLayoutKey   string
	SecondaryLayoutURL string
	SecondaryLayoutKey string
	UpscalerURL        string
	UpscalerKey        string

	Tuning domain.ExtractionTuning
}

// NewConfig creates a new configuration instance with default values
func NewConfig() domain.Config {
	return &AppConfig{
		// Cloud Run (and many PaaS) provide the listening port via PORT.
		// Keep SERVER_PORT for local/dev compatibility.
		ServerPort: getEnvOrDefault("PORT", getEnvOrDefault("SERVER_PORT", "8080")),
		LogLevel:   getEnvOrDefault("LOG_LEVEL", "info"),

		SupabaseURL: getEnvOrDefault("SUPABASE_URL", ""),
		SupabaseKey: getEnvOrDefault("SUPABASE_ANON_KEY", ""),

		VertexProjectID: getEnvOrDefault("VERTEX_PROJECT_ID", ""),
		VertexLocation:  getEnvOrDefault("VERTEX_LOCATION", "us-central1"),
		VisionModelName: getEnvOrDefault("VISION_MODEL", "gemini-2.0-flash-001"),

		PrimaryLayoutURL:   getEnvOrDefault("MINERU_API_URL", ""),
		PrimaryLayoutKey:   getEnvOrDefault("MINERU_API_KEY", ""),
		SecondaryLayoutURL: getEnvOrDefault("DOTS_OCR_API_URL", ""),
		SecondaryLayoutKey: getEnvOrDefault("DOTS_OCR_API_KEY", ""),
		UpscalerURL:        getEnvOrDefault("UPSCALER_API_URL", ""),
		UpscalerKey:        getEnvOrDefault("UPSCALER_API_KEY", ""),

		Tuning: domain.ExtractionTuning{
			RenderScale:      getEnvFloatOrDefault("RENDER_SCALE", 2.0),
			PrimaryTimeout:   getEnvDurationOrDefault("PRIMARY_LAYOUT_TIMEOUT", 600*time.Second),
			SecondaryTimeout: getEnvDurationOrDefault("SECONDARY_LAYOUT_TIMEOUT", 240*time.Second),
			UpscaleFactor:    getEnvIntOrDefault("UPSCALE_FACTOR", 2),

			MinDocChars:           getEnvIntOrDefault("QUALITY_MIN_DOC_CHARS", 30),
			MaxEmptyBlockRatio:    getEnvFloatOrDefault("QUALITY_MAX_EMPTY_RATIO", 0.6),
			MinAvgCharsPerBlock:   getEnvFloatOrDefault("QUALITY_MIN_AVG_CHARS", 8),
			SparseEmptyBlockRatio: getEnvFloatOrDefault("QUALITY_SPARSE_EMPTY_RATIO", 0.4),

			InitialConcurrency: getEnvIntOrDefault("BLOCK_CONCURRENCY_INITIAL", 5),
			MinConcurrency:     getEnvIntOrDefault("BLOCK_CONCURRENCY_MIN", 2),
			MaxConcurrency:     getEnvIntOrDefault("BLOCK_CONCURRENCY_MAX", 10),

			RetryBaseDelay: getEnvDurationOrDefault("BLOCK_RETRY_BASE_DELAY", time.Second),
			MaxRetries:     getEnvIntOrDefault("BLOCK_RETRY_MAX", 3),
		},
	}
}

// GetServerPort returns the server port
func (c *AppConfig) GetServerPort() string {
	return c.ServerPort
}

// GetLogLevel returns the logging level
func (c *AppConfig) GetLogLevel() string {
	return c.LogLevel
}

// GetSupabaseURL returns the Supabase URL
func (c *AppConfig) GetSupabaseURL() string {
	return c.SupabaseURL
}

// GetSupabaseKey returns the Supabase anon key
func (c *AppConfig) GetSupabaseKey() string {
	return c.SupabaseKey
}

// GetVertexProjectID returns the Vertex AI project
func (c *AppConfig) GetVertexProjectID() string {
	return c.VertexProjectID
}

// GetVertexLocation returns the Vertex AI region
func (c *AppConfig) GetVertexLocation() string {
	return c.VertexLocation
}

// GetVisionModelName returns the vision model identifier
func (c *AppConfig) GetVisionModelName() string {
	return c.VisionModelName
}

// GetPrimaryLayoutURL returns the primary layout provider endpoint
func (c *AppConfig) GetPrimaryLayoutURL() string {
	return c.PrimaryLayoutURL
}

// GetPrimaryLayoutKey returns the primary layout provider API key
func (c *AppConfig) GetPrimaryLayoutKey() string {
	return c.PrimaryLayoutKey
}

// GetSecondaryLayoutURL returns the secondary layout provider endpoint
func (c *AppConfig) GetSecondaryLayoutURL() string {
	return c.SecondaryLayoutURL
}

// GetSecondaryLayoutKey returns the secondary layout provider API key
func (c *AppConfig) GetSecondaryLayoutKey() string {
	return c.SecondaryLayoutKey
}

// GetUpscalerURL returns the super-resolution provider endpoint
func (c *AppConfig) GetUpscalerURL() string {
	return c.UpscalerURL
}

// GetUpscalerKey returns the super-resolution provider API key
func (c *AppConfig) GetUpscalerKey() string {
	return c.UpscalerKey
}

// GetExtractionTuning returns the engine tunables
func (c *AppConfig) GetExtractionTuning() domain.ExtractionTuning {
	return c.Tuning
}

// Helper functions for environment variable handling
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
