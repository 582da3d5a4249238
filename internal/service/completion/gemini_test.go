package completion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/educhain/assistant/backend/internal/config"
)

func testGeminiConfig(baseURL string) config.GeminiConfig {
	return config.GeminiConfig{
		APIKey:          "test-key",
		BaseURL:         baseURL,
		Model:           "gemini-pro",
		Temperature:     0.7,
		TopK:            40,
		TopP:            0.95,
		MaxOutputTokens: 1024,
	}
}

func TestGeminiCompleteSendsHeaderAuth(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/gemini-pro:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.URL.Query().Get("key"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"hi there"}]}}]}`)
	}))
	defer srv.Close()

	client := NewGeminiClient(testGeminiConfig(srv.URL))
	reply, err := client.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi there", reply)

	contents, ok := captured["contents"].([]any)
	require.True(t, ok)
	require.Len(t, contents, 1)
	parts := contents[0].(map[string]any)["parts"].([]any)
	require.Len(t, parts, 1)
	assert.Equal(t, "hello", parts[0].(map[string]any)["text"])

	gen, ok := captured["generationConfig"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0.7, gen["temperature"])
	assert.Equal(t, float64(40), gen["topK"])
	assert.Equal(t, 0.95, gen["topP"])
	assert.Equal(t, float64(1024), gen["maxOutputTokens"])
}

func TestGeminiCompleteOmitsEmptyGenerationConfig(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &captured)
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`)
	}))
	defer srv.Close()

	cfg := config.GeminiConfig{APIKey: "k", BaseURL: srv.URL, Model: "gemini-pro"}
	_, err := NewGeminiClient(cfg).Complete(context.Background(), "hello")
	require.NoError(t, err)
	_, present := captured["generationConfig"]
	assert.False(t, present)
}

func TestGeminiCompleteFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "non-2xx",
			status: http.StatusForbidden,
			body:   `{"error":{"message":"denied"}}`,
			check: func(t *testing.T, err error) {
				var statusErr *StatusError
				require.True(t, errors.As(err, &statusErr))
				assert.Equal(t, http.StatusForbidden, statusErr.Code)
			},
		},
		{
			name:   "no candidates",
			status: http.StatusOK,
			body:   `{"candidates":[]}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMalformedResponse)
			},
		},
		{
			name:   "missing text",
			status: http.StatusOK,
			body:   `{"candidates":[{"content":{"parts":[{}]}}]}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMalformedResponse)
			},
		},
		{
			name:   "empty text",
			status: http.StatusOK,
			body:   `{"candidates":[{"content":{"parts":[{"text":""}]}}]}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMalformedResponse)
			},
		},
		{
			name:   "not json",
			status: http.StatusOK,
			body:   `<html>`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMalformedResponse)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			reply, err := NewGeminiClient(testGeminiConfig(srv.URL)).Complete(context.Background(), "hello")
			require.Error(t, err)
			assert.Empty(t, reply)
			tt.check(t, err)
		})
	}
}

func TestGeminiCompleteNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewGeminiClient(testGeminiConfig(url)).Complete(context.Background(), "hello")
	assert.Error(t, err)
}

func TestGeminiCompleteRejectsEmptyPrompt(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls++ }))
	defer srv.Close()

	_, err := NewGeminiClient(testGeminiConfig(srv.URL)).Complete(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyPrompt)
	assert.Zero(t, calls)
}

func TestGeminiCompleteHonorsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	cfg := testGeminiConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	_, err := NewGeminiClient(cfg).Complete(context.Background(), "hello")
	assert.Error(t, err)
}

func TestUnavailable(t *testing.T) {
	_, err := Unavailable{}.Complete(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrUnavailable)
}
