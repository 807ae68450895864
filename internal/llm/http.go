package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docintake/internal/common"
)

// SendJSON POSTs body to url and returns the raw response body.
// Transport failures and non-2xx statuses come back as typed model errors (see StatusError).
func SendJSON(ctx context.Context, client *http.Client, url string, body any, headers map[string]string, logger *slog.Logger) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	reqID := uuid.New().String()
	if id := common.RequestIDFromContext(ctx); id != "" {
		reqID = id
	}
	start := time.Now()

	bs, err := json.Marshal(body)
	if err != nil {
		logger.Error("llm.http.encode_error", "req_id", reqID, "error", err)
		return nil, fmt.Errorf("encode json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		logger.Error("llm.http.build_request_error", "req_id", reqID, "error", err)
		return nil, common.NewAppError("NETWORK_ERROR", "build request", fmt.Errorf("%w: %v", common.ErrNetwork, err))
	}

	// Default headers; allow caller overrides.
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	logger.Info("llm.http.request",
		"req_id", reqID,
		"run_id", common.RunIDFromContext(ctx),
		"url", url,
		"content_length", len(bs),
	)

	resp, err := client.Do(req)
	if err != nil {
		logger.Error("llm.http.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, common.NewAppError("NETWORK_ERROR", "send request", fmt.Errorf("%w: %v", common.ErrNetwork, err))
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			logger.Warn("llm.http.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, readErr := io.ReadAll(resp.Body)

	logger.Info("llm.http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return raw, StatusError(resp.StatusCode, raw)
	}
	if readErr != nil {
		return raw, common.NewAppError("NETWORK_ERROR", "read response", fmt.Errorf("%w: %v", common.ErrNetwork, readErr))
	}
	return raw, nil
}

// StatusError maps a non-2xx status to a typed model error:
// 401/403 auth, 429 rate limit, 502/503/504 backend unavailable, anything else network.
func StatusError(status int, body []byte) error {
	msg := fmt.Sprintf("status %d: %s", status, snippet(body))
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return common.NewAppError("AUTH_ERROR", msg, common.ErrAuth)
	case http.StatusTooManyRequests:
		return common.NewAppError("RATE_LIMITED", msg, common.ErrRateLimit)
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return common.NewAppError("BACKEND_UNAVAILABLE", msg, common.ErrBackendUnavailable)
	default:
		return common.NewAppError("NETWORK_ERROR", msg, common.ErrNetwork)
	}
}

// MalformedBody reports a 2xx body that does not have the expected shape.
func MalformedBody(provider string, err error) error {
	if err == nil {
		err = errors.New("missing content")
	}
	return common.NewAppError("NETWORK_ERROR", provider+" response body", fmt.Errorf("%w: %v", common.ErrNetwork, err))
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 300 {
		return s[:300] + "..."
	}
	return s
}
