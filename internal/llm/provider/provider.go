// Package provider selects the extraction backend from configuration.
package provider

import (
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/docintake/internal/common"
	"github.com/joseph-ayodele/docintake/internal/llm"
	"github.com/joseph-ayodele/docintake/internal/llm/ollama"
	"github.com/joseph-ayodele/docintake/internal/llm/openai"
)

const (
	OpenAI    = "openai"
	Ollama    = "ollama"
	Anthropic = "anthropic"
	Gemini    = "gemini"
	Azure     = "azure"
)

// New returns the client for cfg.Provider. Kinds without an implementation,
// and unknown kinds, get a client that fails fast with a backend-unavailable error.
func New(cfg common.LLMConfig, logger *slog.Logger) llm.Client {
	if logger == nil {
		logger = slog.Default()
	}
	kind := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch kind {
	case OpenAI, "":
		return openai.NewClient(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger)
	case Ollama:
		return ollama.NewClient(ollama.Config{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}, logger)
	case Anthropic, Gemini, Azure:
		logger.Warn("llm.provider.not_implemented", "provider", kind)
		return llm.Unavailable{Provider: kind}
	default:
		logger.Warn("llm.provider.unknown", "provider", kind)
		return llm.Unavailable{Provider: kind}
	}
}
