// Package llm talks to OpenAI-compatible chat completion endpoints and turns
// their replies into bridge commands.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const DefaultBaseURL = "https://api.openai.com/v1"

type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	MaxRetries  int // retries for 429/5xx
	Temperature float64
	Logger      *slog.Logger
}

// Client is a chat completion client.
type Client struct {
	url         string
	apiKey      string
	model       string
	temperature float64
	maxRetries  int
	backoff     time.Duration
	httpClient  *http.Client
	log         *slog.Logger
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		url:         endpoint(opts.BaseURL),
		apiKey:      opts.APIKey,
		model:       opts.Model,
		temperature: opts.Temperature,
		maxRetries:  opts.MaxRetries,
		backoff:     800 * time.Millisecond,
		httpClient:  &http.Client{Timeout: opts.Timeout},
		log:         opts.Logger,
	}
}

// endpoint normalises a base URL that may already end in /chat/completions.
func endpoint(base string) string {
	if base == "" {
		base = DefaultBaseURL
	}
	base = strings.TrimRight(base, "/")
	base = strings.TrimSuffix(base, "/chat/completions")
	return base + "/chat/completions"
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

// Complete sends one system/user exchange and returns the first choice's
// content. 429 and 5xx responses are retried, honouring Retry-After.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	req := chatRequest{Model: c.model, Temperature: c.temperature}
	if system != "" {
		req.Messages = append(req.Messages, message{Role: "system", Content: system})
	}
	req.Messages = append(req.Messages, message{Role: "user", Content: user})

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		out, wait, err := c.do(ctx, body, attempt)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if wait == 0 || attempt == c.maxRetries {
			break
		}
		c.log.Debug("llm retry", "attempt", attempt+1, "wait", wait, "err", err)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", ctx.Err()
		case <-t.C:
		}
	}
	return "", lastErr
}

// do performs one attempt. A non-zero wait means the error is retryable.
func (c *Client) do(ctx context.Context, body []byte, attempt int) (string, time.Duration, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", 0, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode/100 == 2 {
		content := gjson.GetBytes(data, "choices.0.message.content")
		if !content.Exists() {
			return "", 0, fmt.Errorf("response has no choices")
		}
		return content.String(), 0, nil
	}

	msg := strings.TrimSpace(gjson.GetBytes(data, "error.message").String())
	if msg == "" {
		msg = resp.Status
	}
	err = fmt.Errorf("API error (status %d): %s", resp.StatusCode, msg)
	if !retryable(resp.StatusCode) {
		return "", 0, err
	}
	return "", c.retryAfter(resp.Header.Get("Retry-After"), attempt), err
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func (c *Client) retryAfter(header string, attempt int) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	wait := c.backoff << attempt
	if wait > 8*time.Second {
		wait = 8 * time.Second
	}
	return wait
}
