package reason

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/storewatch/storewatch/internal/metrics"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	defaultMaxTokens  = 1000
)

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	cfg     Config
	http    *http.Client
	metrics *metrics.Metrics
}

// NewClient creates a reasoning client. The client is usable even when
// unconfigured; calls then return ErrNotConfigured.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		metrics: metrics.Default,
	}
}

// Configured reports whether an endpoint and model are set.
func (c *Client) Configured() bool {
	return c.cfg.APIURL != "" && c.cfg.Model != ""
}

// TextCompletion runs a chat completion and returns the reply text.
func (c *Client) TextCompletion(ctx context.Context, messages []Message, opts Options) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	content := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		content = append(content, map[string]any{"role": m.Role, "content": m.Content})
	}
	return c.complete(ctx, "text_completion", content, opts)
}

// AnalyzeImage sends a base64-encoded frame as a data-URL image part
// together with the prompt.
func (c *Client) AnalyzeImage(ctx context.Context, imageBase64, prompt, systemPrompt string, opts Options) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	imageBase64 = strings.TrimPrefix(imageBase64, "data:image/jpeg;base64,")

	var msgs []map[string]any
	if systemPrompt != "" {
		msgs = append(msgs, map[string]any{"role": "system", "content": systemPrompt})
	}
	msgs = append(msgs, map[string]any{
		"role": "user",
		"content": []map[string]any{
			{"type": "text", "text": prompt},
			{"type": "image_url", "image_url": map[string]string{
				"url": "data:image/jpeg;base64," + imageBase64,
			}},
		},
	})
	return c.complete(ctx, "analyze_image", msgs, opts)
}

// complete posts the request with bounded retries. Transient failures
// (network errors, timeouts, 429, 5xx) are retried with linear backoff;
// other 4xx are terminal.
func (c *Client) complete(ctx context.Context, operation string, messages []map[string]any, opts Options) (out string, err error) {
	defer func() {
		if c.metrics == nil {
			return
		}
		outcome := "ok"
		if err != nil {
			outcome = "error"
			c.metrics.ReasonErrors.WithLabelValues(operation).Inc()
		}
		c.metrics.ReasonCalls.WithLabelValues(operation, outcome).Inc()
	}()
	return c.post(ctx, messages, opts)
}

func (c *Client) post(ctx context.Context, messages []map[string]any, opts Options) (string, error) {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	payload := map[string]any{
		"model":       c.cfg.Model,
		"messages":    messages,
		"max_tokens":  opts.MaxTokens,
		"temperature": opts.Temperature,
	}
	if opts.JSONResponse {
		payload["response_format"] = map[string]string{"type": "json_object"}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("reason: marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("reason: create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = err
			continue
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return extractReply(respBody)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("reason: HTTP %d: %s", resp.StatusCode, truncate(string(respBody), 200))
		default:
			return "", fmt.Errorf("reason: HTTP %d: %s", resp.StatusCode, truncate(string(respBody), 200))
		}
	}

	return "", fmt.Errorf("reason: failed after %d attempts: %w", c.cfg.MaxRetries, lastErr)
}

func extractReply(respBody []byte) (string, error) {
	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil || len(result.Choices) == 0 {
		return "", fmt.Errorf("reason: empty completion response")
	}
	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
