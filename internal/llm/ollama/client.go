// Package ollama is the local inference backend.
package ollama

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/docintake/internal/llm"
)

type Config struct {
	BaseURL string // default http://localhost:11434
	Model   string // default "llama3.1"
	Timeout time.Duration
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.1"
	}
	if cfg.Timeout <= 0 {
		// local models are slow on long documents
		cfg.Timeout = 180 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response *string `json:"response"`
}

// Send implements llm.Client with a single non-streaming /api/generate call.
func (c *Client) Send(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/api/generate"

	raw, err := llm.SendJSON(ctx, c.http, endpoint, generateRequest{Model: c.cfg.Model, Prompt: prompt}, nil, c.logger)
	if err != nil {
		c.logger.Error("llm.ollama.send_failed", "model", c.cfg.Model, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		c.logger.Error("llm.ollama.decode_error", "error", err, "raw_bytes", len(raw))
		return "", llm.MalformedBody("ollama", err)
	}
	if gr.Response == nil {
		return "", llm.MalformedBody("ollama", nil)
	}

	c.logger.Info("llm.ollama.ok",
		"model", c.cfg.Model,
		"content_len", len(*gr.Response),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return *gr.Response, nil
}
