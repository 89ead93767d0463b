// Package config loads pipeline configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every setting the pipeline reads at startup.
type Config struct {
	Server    ServerConfig
	Providers ProvidersConfig
	Ingest    IngestConfig
	Export    ExportConfig
	Prompts   PromptsConfig
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ProvidersConfig configures the inference backends. A backend with no
// credential (or an unreachable local service) is excluded by the
// registry at startup, which is an availability fact and not an error.
type ProvidersConfig struct {
	OpenAI OpenAIConfig
	Gemini GeminiConfig
	Ollama OllamaConfig

	// Per-call deadlines for the hosted backends. Ollama carries its own
	// longer hardcoded deadlines.
	ClassifyTimeout time.Duration
	ExtractTimeout  time.Duration
}

// OpenAIConfig configures the OpenAI backend.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// GeminiConfig configures the Gemini backend.
type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OllamaConfig configures the local Ollama backend.
type OllamaConfig struct {
	BaseURL      string
	Model        string
	ProbeTimeout time.Duration
}

// IngestConfig configures PDF text acquisition.
type IngestConfig struct {
	UseOCR       bool
	PreferOCR    bool
	OCRThreshold int
	OCRDPI       int
}

// ExportConfig configures where processed documents are written.
type ExportConfig struct {
	JSONDir string
	CSVFile string
}

// PromptsConfig points at an optional YAML prompt override file. Empty
// means the embedded defaults are used.
type PromptsConfig struct {
	File string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),
		},
		Providers: ProvidersConfig{
			OpenAI: OpenAIConfig{
				APIKey:  getEnv("OPENAI_API_KEY", ""),
				BaseURL: getEnv("OPENAI_BASE_URL", ""),
				Model:   getEnv("OPENAI_MODEL", "gpt-4o"),
			},
			Gemini: GeminiConfig{
				APIKey:  getEnv("GEMINI_API_KEY", ""),
				BaseURL: getEnv("GEMINI_BASE_URL", ""),
				Model:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			},
			Ollama: OllamaConfig{
				BaseURL:      getEnv("OLLAMA_URL", "http://localhost:11434"),
				Model:        getEnv("OLLAMA_MODEL", "qwen2.5:7b"),
				ProbeTimeout: getDurationEnv("OLLAMA_PROBE_TIMEOUT", 2*time.Second),
			},
			ClassifyTimeout: getDurationEnv("PROVIDER_CLASSIFY_TIMEOUT", 30*time.Second),
			ExtractTimeout:  getDurationEnv("PROVIDER_EXTRACT_TIMEOUT", 60*time.Second),
		},
		Ingest: IngestConfig{
			UseOCR:       getBoolEnv("INGEST_USE_OCR", true),
			PreferOCR:    getBoolEnv("INGEST_PREFER_OCR", true),
			OCRThreshold: getIntEnv("INGEST_OCR_THRESHOLD", 999999),
			OCRDPI:       getIntEnv("INGEST_OCR_DPI", 300),
		},
		Export: ExportConfig{
			JSONDir: getEnv("EXPORT_JSON_DIR", "data/output/json"),
			CSVFile: getEnv("EXPORT_CSV_FILE", "data/output/master_data.csv"),
		},
		Prompts: PromptsConfig{
			File: getEnv("PROMPTS_FILE", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
