package ollama

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
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"model": "llama3.1", "prompt": "estrai", "stream": false}, body)
		_, _ = w.Write([]byte(`{"model":"llama3.1","response":"{\"cognome\":\"ROSSI\"}","done":true}`))
	}))
	defer srv.Close()

	out, err := NewClient(Config{BaseURL: srv.URL}, nil).Send(context.Background(), "estrai")
	require.NoError(t, err)
	assert.Equal(t, `{"cognome":"ROSSI"}`, out)
}

func TestSendErrors(t *testing.T) {
	status, body := http.StatusOK, `{"done":true}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()
	c := NewClient(Config{BaseURL: srv.URL}, nil)

	_, err := c.Send(context.Background(), "p")
	assert.True(t, errors.Is(err, common.ErrNetwork))

	status = http.StatusBadGateway
	_, err = c.Send(context.Background(), "p")
	assert.True(t, errors.Is(err, common.ErrBackendUnavailable))
}
