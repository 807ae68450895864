package common

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	OCR        OCRConfig
	LLM        LLMConfig
	Pipeline   PipelineConfig
	Classifier ClassifierConfig
	Archive    ArchiveConfig
	Server     ServerConfig
	LogLevel   slog.Level
}

// OCRConfig holds text-extraction configuration
type OCRConfig struct {
	Pdftoppm       string
	Tesseract      string
	TesseractLang  string
	TessdataDir    string
	DPI            int
	MaxOCRPages    int
	MinNativeChars int
	NormalizeImage bool
}

// LLMConfig selects and configures the extraction backend
type LLMConfig struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// PipelineConfig holds orchestrator limits
type PipelineConfig struct {
	MaxFileBytes       int64
	InterDocumentDelay time.Duration
}

// ClassifierConfig points at an optional YAML rule table overriding the embedded one
type ClassifierConfig struct {
	RulesPath string
}

// ArchiveConfig configures where terminal runs are archived; empty Driver disables it
type ArchiveConfig struct {
	Driver string // "sqlite" | "postgres" | ""
	DSN    string
}

// ServerConfig holds daemon listener configuration
type ServerConfig struct {
	HTTPAddr  string
	GRPCAddr  string
	WatchDirs []string
}

// LoadConfig loads configuration from environment variables, after an optional .env file
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("config.dotenv.load_failed", "error", err)
	}

	cfg := &Config{
		OCR: OCRConfig{
			Pdftoppm:       getEnv("PDFTOPPM", "pdftoppm"),
			Tesseract:      getEnv("TESSERACT", "tesseract"),
			TesseractLang:  getEnv("TESSERACT_LANG", "ita"),
			TessdataDir:    getEnv("TESSDATA_PREFIX", ""),
			DPI:            getEnvAsInt("OCR_DPI", 300),
			MaxOCRPages:    getEnvAsInt("OCR_MAX_PAGES", 10),
			MinNativeChars: getEnvAsInt("OCR_MIN_NATIVE_CHARS", 50),
			NormalizeImage: getEnvAsBool("OCR_NORMALIZE_IMAGE", true),
		},
		LLM: LLMConfig{
			Provider:    strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
			Model:       getEnv("LLM_MODEL", ""),
			APIKey:      getEnv("LLM_API_KEY", os.Getenv("OPENAI_API_KEY")),
			BaseURL:     getEnv("LLM_BASE_URL", ""),
			MaxTokens:   getEnvAsInt("LLM_MAX_TOKENS", 1024),
			Temperature: getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
		},
		Pipeline: PipelineConfig{
			MaxFileBytes:       getEnvAsInt64("MAX_FILE_BYTES", 50<<20),
			InterDocumentDelay: getEnvAsDuration("INTER_DOCUMENT_DELAY", 2*time.Second),
		},
		Classifier: ClassifierConfig{
			RulesPath: getEnv("CLASSIFIER_RULES", ""),
		},
		Archive: ArchiveConfig{
			Driver: strings.ToLower(getEnv("ARCHIVE_DRIVER", "")),
			DSN:    getEnv("ARCHIVE_DSN", ""),
		},
		Server: ServerConfig{
			HTTPAddr:  getEnv("HTTP_ADDR", ":8081"),
			GRPCAddr:  getEnv("GRPC_ADDR", ":8080"),
			WatchDirs: splitList(getEnv("WATCH_DIRS", "")),
		},
		LogLevel: getEnvAsLevel("LOG_LEVEL", slog.LevelInfo),
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaultModel(cfg.LLM.Provider)
	}
	return cfg
}

func defaultModel(provider string) string {
	switch provider {
	case "ollama":
		return "llama3.1"
	default:
		return "gpt-4o-mini"
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	if value := os.Getenv(key); value != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(value)); err == nil {
			return lvl
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator().
		Field("LLM_PROVIDER", c.LLM.Provider, Required).
		Field("LLM_MODEL", c.LLM.Model, Required).
		Field("LLM_TIMEOUT", c.LLM.Timeout, Positive).
		Field("LLM_MAX_TOKENS", c.LLM.MaxTokens, Positive).
		Field("LLM_TEMPERATURE", c.LLM.Temperature, NonNegative).
		Field("MAX_FILE_BYTES", c.Pipeline.MaxFileBytes, Positive).
		Field("INTER_DOCUMENT_DELAY", c.Pipeline.InterDocumentDelay, NonNegative).
		Field("OCR_DPI", c.OCR.DPI, Positive).
		Field("OCR_MAX_PAGES", c.OCR.MaxOCRPages, NonNegative)

	if c.Archive.Driver != "" {
		v.Field("ARCHIVE_DRIVER", c.Archive.Driver, OneOf("sqlite", "postgres")).
			Field("ARCHIVE_DSN", c.Archive.DSN, Required)
	}
	return ValidateAndReturnError("CONFIG_ERROR", v)
}
