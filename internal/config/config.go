package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port      int
	LogLevel  string
	LogFormat string
	APIToken  string

	ModelAPIURL      string
	ModelAPIKey      string
	CheapModel       string
	CheapBackend     string
	LocalCommand     string
	StrongModel      string
	StrongBackend    string
	GeminiAPIKey     string
	Temperature      float64
	MaxTokens        int
	ModelTimeout     time.Duration
	EscalatePastDate bool

	BackendURL    string
	BackendToken  string
	SyncInterval  time.Duration
	SyncItemDelay time.Duration

	DataDir   string
	VocabFile string
	PromptDir string
	Timezone  string

	DatabaseURL string
	NatsURL     string
	NatsToken   string
}

func Load() Config {
	return Config{
		Port:      envInt("PARSIK_PORT", 8760),
		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", "json"),
		APIToken:  envStr("PARSIK_API_TOKEN", ""),

		ModelAPIURL:      envStr("MODEL_API_URL", "http://localhost:8000/v1/chat/completions"),
		ModelAPIKey:      envStr("MODEL_API_KEY", ""),
		CheapModel:       envStr("PARSIK_MODEL", "qwen2.5-3b-instruct"),
		CheapBackend:     envStr("PARSIK_CHEAP_BACKEND", "chat"),
		LocalCommand:     envStr("PARSIK_LOCAL_COMMAND", ""),
		StrongModel:      envStr("PARSIK_STRONG_MODEL", "qwen2.5-7b-instruct"),
		StrongBackend:    envStr("PARSIK_STRONG_BACKEND", "chat"),
		GeminiAPIKey:     envStr("GEMINI_API_KEY", ""),
		Temperature:      envFloat("MODEL_TEMPERATURE", 0.1),
		MaxTokens:        envInt("MODEL_MAX_TOKENS", 1024),
		ModelTimeout:     envDuration("MODEL_TIMEOUT", 120*time.Second),
		EscalatePastDate: envBool("PARSIK_ESCALATE_PAST_DATE", false),

		BackendURL:    envStr("BACKEND_URL", ""),
		BackendToken:  envStr("BACKEND_TOKEN", ""),
		SyncInterval:  envDuration("SYNC_INTERVAL", 5*time.Minute),
		SyncItemDelay: envDuration("SYNC_ITEM_DELAY", time.Second),

		DataDir:   envStr("PARSIK_DATA_DIR", "data"),
		VocabFile: envStr("PARSIK_VOCAB_FILE", ""),
		PromptDir: envStr("PARSIK_PROMPT_DIR", ""),
		Timezone:  envStr("PARSIK_TIMEZONE", "Local"),

		DatabaseURL: envStr("DATABASE_URL", ""),
		NatsURL:     envStr("NATS_URL", ""),
		NatsToken:   envStr("NATS_TOKEN", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// envDuration accepts Go durations ("90s") and bare integers as seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
