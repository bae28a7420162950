package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds runtime settings for the API server and the CLI.
type Config struct {
	Port        string
	Environment string
	LogLevel    string

	DatabasePath        string
	PersistMaxRetryTime time.Duration

	LLMGatewayURL  string
	LLMAPIKey      string
	LLMModel       string
	LLMTemperature float64

	ModerationURL    string
	ModerationStrict bool

	TranscribeURL   string
	TranscribeModel string

	UseMockLLM        bool
	UseMockTranscribe bool
	UseMockModeration bool

	StageTimeout     time.Duration
	HTTPTimeout      time.Duration
	MaxRetryTime     time.Duration
	BatchConcurrency int

	DatasetPath string
}

// Load reads configuration from the environment. Call godotenv.Load first
// if a .env file should be honored.
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "local"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		DatabasePath:        getEnv("DATABASE_PATH", "data/calls.db"),
		PersistMaxRetryTime: getEnvAsDuration("PERSIST_MAX_RETRY_TIME", 30*time.Second),

		LLMGatewayURL:  getEnv("LLM_GATEWAY_URL", "https://api.openai.com/v1/chat/completions"),
		LLMAPIKey:      getEnv("LLM_API_KEY", ""),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMTemperature: getEnvAsFloat("LLM_TEMPERATURE", 0.2),

		ModerationURL:    getEnv("MODERATION_URL", "https://api.openai.com/v1/moderations"),
		ModerationStrict: getEnvAsBool("MODERATION_STRICT", false),

		TranscribeURL:   getEnv("TRANSCRIBE_URL", "https://api.openai.com/v1/audio/transcriptions"),
		TranscribeModel: getEnv("TRANSCRIBE_MODEL", "whisper-1"),

		UseMockLLM:        getEnvAsBool("USE_MOCK_LLM", false),
		UseMockTranscribe: getEnvAsBool("USE_MOCK_TRANSCRIBE", false),
		UseMockModeration: getEnvAsBool("USE_MOCK_MODERATION", false),

		StageTimeout:     getEnvAsDuration("STAGE_TIMEOUT", 60*time.Second),
		HTTPTimeout:      getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),
		MaxRetryTime:     getEnvAsDuration("MAX_RETRY_TIME", 20*time.Second),
		BatchConcurrency: getEnvAsInt("BATCH_CONCURRENCY", 4),

		DatasetPath: getEnv("DATASET_PATH", ""),
	}
}

// MockAll reports whether no external service will be contacted.
func (c *Config) MockAll() bool {
	return c.UseMockLLM && c.UseMockTranscribe && c.UseMockModeration
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
