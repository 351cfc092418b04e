// Package insight generates summaries, key insights, and embeddings for
// ingested content.
package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go/failsafehttp"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/mediabrief/mediabrief/pkg/config"
)

const defaultMaxTokens = 8192

// LLMClient calls the language model's messages API.
type LLMClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewLLMClient builds the client with retry on transient failures.
func NewLLMClient(cfg config.LLMConfig) *LLMClient {
	retryPolicy := retrypolicy.Builder[*http.Response]().
		HandleIf(func(resp *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		}).
		WithBackoff(2*time.Second, 30*time.Second).
		WithJitterFactor(0.2).
		WithMaxRetries(3).
		Build()

	return &LLMClient{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: failsafehttp.NewRoundTripper(http.DefaultTransport, retryPolicy),
		},
	}
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends one user prompt and returns the model's text response.
func (c *LLMClient) Complete(ctx context.Context, system, user string) (string, error) {
	payload, err := json.Marshal(messagesRequest{
		Model:     c.cfg.Model,
		MaxTokens: defaultMaxTokens,
		System:    system,
		Messages:  []message{{Role: "user", Content: user}},
	})
	if err != nil {
		return "", err
	}

	url := strings.TrimRight(c.cfg.APIURL, "/") + "/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.cfg.APIKey)
	req.Header.Set("Anthropic-Version", "2023-06-01")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("model request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("model returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode model response: %w", err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("model error: %s", decoded.Error.Message)
	}

	var sb strings.Builder
	for _, block := range decoded.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("model returned no text content")
	}
	return sb.String(), nil
}
