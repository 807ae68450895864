package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docintake/internal/common"
)

func TestSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-test", body["model"])
		assert.Equal(t, float64(256), body["max_tokens"])
		assert.Contains(t, body, "temperature")
		msgs := body["messages"].([]any)
		require.Len(t, msgs, 1)
		assert.Equal(t, "user", msgs[0].(map[string]any)["role"])
		assert.Equal(t, "estrai", msgs[0].(map[string]any)["content"])

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"nome\":\"MARIO\"}"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1/", Model: "gpt-test", MaxTokens: 256}, nil)
	out, err := c.Send(context.Background(), "estrai")
	require.NoError(t, err)
	assert.Equal(t, `{"nome":"MARIO"}`, out)
}

func TestSendErrors(t *testing.T) {
	status := http.StatusOK
	body := `{"choices":[]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()
	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)

	_, err := c.Send(context.Background(), "p")
	assert.True(t, errors.Is(err, common.ErrNetwork), "empty choices")

	body = "<html>"
	_, err = c.Send(context.Background(), "p")
	assert.True(t, errors.Is(err, common.ErrNetwork), "malformed body")

	status, body = http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`
	_, err = c.Send(context.Background(), "p")
	assert.True(t, errors.Is(err, common.ErrRateLimit))

	status = http.StatusUnauthorized
	_, err = c.Send(context.Background(), "p")
	assert.True(t, errors.Is(err, common.ErrAuth))

	status = http.StatusServiceUnavailable
	_, err = c.Send(context.Background(), "p")
	assert.True(t, errors.Is(err, common.ErrBackendUnavailable))
}

func TestSendMissingKey(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1"}, nil)
	_, err := c.Send(context.Background(), "p")
	assert.True(t, errors.Is(err, common.ErrAuth))
}
