package completion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deskbot/internal/budget"
	"deskbot/internal/config"
)

func newTestClient(url string) *HTTPClient {
	cfg := config.LLMConfig{APIKey: "test-key", BaseURL: url, Model: "test-model"}
	c := NewHTTPClient(cfg, 5*time.Second)
	c.maxRetries = 1
	return c
}

func simpleRequest() Request {
	return Request{
		Segments: []budget.Segment{
			{Role: "system", Content: "you are support"},
			{Role: "user", Content: "hello"},
		},
		MaxTokens:   100,
		Temperature: 0.7,
	}
}

func TestGenerateSuccess(t *testing.T) {
	var gotAuth string
	var gotBody chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"  hi there  "}}]}`))
	}))
	defer srv.Close()

	text, err := newTestClient(srv.URL).Generate(context.Background(), simpleRequest())
	require.NoError(t, err)
	assert.Equal(t, "hi there", text)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "test-model", gotBody.Model)
	require.Len(t, gotBody.Messages, 2)
	assert.Equal(t, "system", gotBody.Messages[0].Role)
}

func TestGenerateRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.maxRetries = 0
	_, err := c.Generate(context.Background(), simpleRequest())
	require.Error(t, err)
	assert.Equal(t, FailureRateLimited, KindOf(err))
}

func TestGenerateAuthFailed(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		_, err := newTestClient(srv.URL).Generate(context.Background(), simpleRequest())
		srv.Close()
		require.Error(t, err)
		assert.Equal(t, FailureAuth, KindOf(err), "status %d", status)
	}
}

func TestGenerateServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.maxRetries = 0
	_, err := c.Generate(context.Background(), simpleRequest())
	require.Error(t, err)
	assert.Equal(t, FailureTransient, KindOf(err))
}

func TestGenerateTransientRetriesThenSucceeds(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"recovered"}}]}`))
	}))
	defer srv.Close()

	text, err := newTestClient(srv.URL).Generate(context.Background(), simpleRequest())
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, 2, calls)
}

func TestGenerateHonorsCancellationDuringSpacing(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"choices":[{"message":{"content":"hi"}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	// Force the inter-request spacing wait for the next call.
	c.lastRequest = time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Generate(ctx, simpleRequest())
	require.Error(t, err)
	assert.Equal(t, FailureTransient, KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestGenerateMissingAPIKey(t *testing.T) {
	c := NewHTTPClient(config.LLMConfig{BaseURL: "http://unused"}, time.Second)
	_, err := c.Generate(context.Background(), simpleRequest())
	require.Error(t, err)
	assert.Equal(t, FailureAuth, KindOf(err))
}

func TestGenerateEmbeddedAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"model overloaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), simpleRequest())
	require.Error(t, err)
	assert.Equal(t, FailureUnknown, KindOf(err))
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestKindOfUnclassifiedError(t *testing.T) {
	assert.Equal(t, FailureUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, FailureKind(""), KindOf(nil))
}
