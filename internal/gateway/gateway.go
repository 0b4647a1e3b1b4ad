package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/signalnine/archbench/internal/config"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	InputTokens  int
	OutputTokens int
}

func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

type Response struct {
	Content string
	Usage   Usage
}

// Client talks to an Anthropic-style messages endpoint. Rate-limit backoff
// and the inter-turn delay live here; callers never retry.
type Client struct {
	BaseURL     string
	MaxTokens   int
	MaxAttempts int
	RetryBase   time.Duration
	RetryCap    time.Duration
	TurnDelay   time.Duration
	HTTPClient  *http.Client

	apiKey string
}

func New(cfg config.Gateway) (*Client, error) {
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%s not set", cfg.APIKeyEnv)
	}
	return &Client{
		BaseURL:     cfg.BaseURL,
		MaxTokens:   cfg.MaxTokens,
		MaxAttempts: cfg.MaxAttempts,
		RetryBase:   time.Duration(cfg.RetryBaseMs) * time.Millisecond,
		RetryCap:    time.Duration(cfg.RetryCapMs) * time.Millisecond,
		TurnDelay:   time.Duration(cfg.TurnDelayMs) * time.Millisecond,
		HTTPClient:  http.DefaultClient,
		apiKey:      apiKey,
	}, nil
}

// Call sends one system prompt + conversation to the model and returns its
// text. Retries HTTP 429 and 529 with exponential backoff; every other
// failure is returned as-is.
func (c *Client) Call(ctx context.Context, system string, messages []Message, model string) (*Response, error) {
	if c.TurnDelay > 0 {
		if err := sleep(ctx, c.TurnDelay); err != nil {
			return nil, err
		}
	}

	attempts := c.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := c.RetryBase << (attempt - 1)
			if c.RetryCap > 0 && delay > c.RetryCap {
				delay = c.RetryCap
			}
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
		resp, retryable, err := c.do(ctx, system, messages, model)
		if err == nil {
			return resp, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("gateway: giving up after %d attempts: %w", attempts, lastErr)
}

func (c *Client) do(ctx context.Context, system string, messages []Message, model string) (*Response, bool, error) {
	reqBody := map[string]interface{}{
		"model":      model,
		"max_tokens": c.MaxTokens,
		"system":     system,
		"messages":   messages,
	}
	bodyBytes, _ := json.Marshal(reqBody)

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/v1/messages", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errBody map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errBody)
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 529
		return nil, retryable, fmt.Errorf("API returned %d: %v", resp.StatusCode, errBody)
	}

	var msgResult struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&msgResult); err != nil {
		return nil, false, err
	}
	if len(msgResult.Content) == 0 {
		return nil, false, fmt.Errorf("no content in response")
	}

	var text string
	for _, block := range msgResult.Content {
		if block.Type == "" || block.Type == "text" {
			text += block.Text
		}
	}
	return &Response{
		Content: text,
		Usage: Usage{
			InputTokens:  msgResult.Usage.InputTokens,
			OutputTokens: msgResult.Usage.OutputTokens,
		},
	}, false, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
