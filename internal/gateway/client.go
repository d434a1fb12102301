package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Client is an OpenAI-compatible HTTP client bound to one model and base
// URL. A Client is safe for concurrent use — Go's http.Transport already
// pools connections, so unlike a thread-local requests.Session there is no
// per-goroutine client to manage.
type Client struct {
	cfg    Config
	http   *http.Client
	limiter *rate.Limiter
}

// New constructs a Client. cfg.BaseURL is normalized to the server root
// (trailing slash and /v1 suffix stripped) so completions/chat paths can be
// appended consistently.
func New(cfg Config) *Client {
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 120
	}
	if cfg.MaxNewTokensCap <= 0 {
		cfg.MaxNewTokensCap = 256
	}
	cfg.BaseURL = strings.TrimSuffix(strings.TrimRight(cfg.BaseURL, "/"), "/v1")

	c := &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds * float64(time.Second)),
		},
	}
	if cfg.QPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.QPS), 1)
	}
	return c
}

type completionRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt,omitempty"`
	Messages    []chatMessage `json:"messages,omitempty"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type completionChoice struct {
	Text    string `json:"text"`
	Message *chatMessage `json:"message"`
}

type completionResponse struct {
	Choices []completionChoice `json:"choices"`
	Usage   usage              `json:"usage"`
}

// Complete issues one request for spec, trying /v1/completions first and
// falling back to /v1/chat/completions on a 404/405 status or an empty
// choices list — some gateways answer /v1/completions with chat-shaped
// payloads, so a present-but-empty text field also triggers the fallback.
func (c *Client) Complete(ctx context.Context, spec PromptSpec) Result {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Result{ID: spec.ID, Err: fmt.Errorf("rate limiter: %w", err)}
		}
	}

	start := time.Now()
	text, u, err := c.postCompletion(ctx, spec)
	if err != nil {
		if isFallbackEligible(err) {
			text, u, err = c.postChatCompletion(ctx, spec)
		}
	}
	elapsed := int(time.Since(start).Milliseconds())

	if err != nil {
		return Result{ID: spec.ID, Err: err, GenTimeMs: elapsed}
	}
	return Result{
		ID:               spec.ID,
		RawText:          text,
		GenTimeMs:        elapsed,
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

// fallbackError marks an error from postCompletion as eligible for the
// chat-completions fallback (404/405 or an empty/unusable choices list).
type fallbackError struct{ cause error }

func (f *fallbackError) Error() string { return f.cause.Error() }
func (f *fallbackError) Unwrap() error { return f.cause }

func isFallbackEligible(err error) bool {
	_, ok := err.(*fallbackError)
	return ok
}

func (c *Client) postCompletion(ctx context.Context, spec PromptSpec) (string, usage, error) {
	payload := completionRequest{
		Model:       c.cfg.Model,
		Prompt:      spec.PromptText,
		MaxTokens:   cappedTokens(spec.MaxNewTokens, c.cfg.MaxNewTokensCap),
		Temperature: c.cfg.Temperature,
	}
	resp, err := c.post(ctx, "/v1/completions", payload)
	if err != nil {
		return "", usage{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusMethodNotAllowed {
		return "", usage{}, &fallbackError{cause: fmt.Errorf("completions endpoint unavailable: %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return "", usage{}, fmt.Errorf("transport_error: http %d: %s", resp.StatusCode, body)
	}

	var parsed completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", usage{}, fmt.Errorf("parse_error: decode completions response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", usage{}, &fallbackError{cause: fmt.Errorf("no choices in completions response")}
	}

	choice := parsed.Choices[0]
	text := choice.Text
	if text == "" && choice.Message != nil {
		text = choice.Message.Content
	}
	if text == "" {
		return "", usage{}, &fallbackError{cause: fmt.Errorf("empty completion text")}
	}
	return text, parsed.Usage, nil
}

func (c *Client) postChatCompletion(ctx context.Context, spec PromptSpec) (string, usage, error) {
	payload := completionRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: spec.PromptText}},
		MaxTokens:   cappedTokens(spec.MaxNewTokens, c.cfg.MaxNewTokensCap),
		Temperature: c.cfg.Temperature,
	}
	resp, err := c.post(ctx, "/v1/chat/completions", payload)
	if err != nil {
		return "", usage{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return "", usage{}, fmt.Errorf("transport_error: http %d: %s", resp.StatusCode, body)
	}

	var parsed completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", usage{}, fmt.Errorf("parse_error: decode chat completions response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", parsed.Usage, nil
	}
	choice := parsed.Choices[0]
	content := ""
	if choice.Message != nil {
		content = choice.Message.Content
	}
	if content == "" {
		content = choice.Text
	}
	return content, parsed.Usage, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport_error: %w", err)
	}
	return resp, nil
}

func cappedTokens(requested, maxTokens int) int {
	if requested <= 0 || requested > maxTokens {
		return maxTokens
	}
	return requested
}
