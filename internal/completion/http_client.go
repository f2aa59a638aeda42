package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"deskbot/internal/config"
	"deskbot/internal/logging"
)

// HTTPClient implements Client against an OpenAI-compatible
// /chat/completions endpoint.
type HTTPClient struct {
	apiKey      string
	baseURL     string
	model       string
	httpClient  *http.Client
	maxRetries  int
	mu          sync.Mutex
	lastRequest time.Time
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewHTTPClient creates a client from configuration.
func NewHTTPClient(cfg config.LLMConfig, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: 3,
	}
}

// Generate sends the request and returns the completion text. Errors are
// always *Failure values so callers can classify them.
func (c *HTTPClient) Generate(ctx context.Context, req Request) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	start := time.Now()
	if c.apiKey == "" {
		logging.APIError("Generate: API key not configured")
		return "", &Failure{Kind: FailureAuth, Err: fmt.Errorf("API key not configured")}
	}

	// Rate limiting between consecutive requests: reserve the next send
	// slot under the lock, then wait outside it so concurrent callers
	// are not serialized through the sleep and cancellation is honored.
	c.mu.Lock()
	now := time.Now()
	wait := 100*time.Millisecond - now.Sub(c.lastRequest)
	if wait > 0 {
		c.lastRequest = now.Add(wait)
	} else {
		c.lastRequest = now
		wait = 0
	}
	c.mu.Unlock()
	if wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return "", &Failure{Kind: FailureTransient, Err: ctx.Err()}
		}
	}

	messages := make([]chatMessage, 0, len(req.Segments))
	for _, seg := range req.Segments {
		messages = append(messages, chatMessage{Role: seg.Role, Content: seg.Content})
	}
	body := chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	var lastErr *Failure
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(1<<uint(attempt-1)) * time.Second):
			case <-ctx.Done():
				return "", &Failure{Kind: FailureTransient, Err: ctx.Err()}
			}
		}

		text, failure := c.send(ctx, body)
		if failure == nil {
			logging.API("Generate: completed in %v response_len=%d", time.Since(start), len(text))
			return text, nil
		}
		lastErr = failure

		// Auth and unknown failures do not improve with retries.
		if failure.Kind == FailureAuth || failure.Kind == FailureUnknown {
			logging.APIError("Generate: %v", failure)
			return "", failure
		}
		logging.APIDebug("Generate: attempt %d failed: %v", attempt+1, failure)
	}

	logging.APIError("Generate: max retries exceeded after %v: %v", time.Since(start), lastErr)
	return "", lastErr
}

func (c *HTTPClient) send(ctx context.Context, body chatRequest) (string, *Failure) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", &Failure{Kind: FailureUnknown, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", &Failure{Kind: FailureUnknown, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &Failure{Kind: FailureTransient, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Failure{Kind: FailureTransient, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &Failure{Kind: FailureRateLimited, Err: fmt.Errorf("rate limit exceeded (429)")}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", &Failure{Kind: FailureAuth, Err: fmt.Errorf("authentication failed with status %d", resp.StatusCode)}
	case resp.StatusCode >= 500:
		return "", &Failure{Kind: FailureTransient, Err: fmt.Errorf("server error with status %d: %s", resp.StatusCode, string(respBody))}
	case resp.StatusCode != http.StatusOK:
		return "", &Failure{Kind: FailureUnknown, Err: fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &Failure{Kind: FailureUnknown, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if parsed.Error != nil {
		return "", &Failure{Kind: FailureUnknown, Err: fmt.Errorf("API error: %s", parsed.Error.Message)}
	}
	if len(parsed.Choices) == 0 {
		return "", &Failure{Kind: FailureUnknown, Err: fmt.Errorf("no completion returned")}
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
