// Package stt calls the speech-to-text oracle and returns word-level timings.
package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/failsafe-go/failsafe-go/failsafehttp"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/mediabrief/mediabrief/pkg/config"
)

// ErrRateLimited is surfaced when the oracle keeps returning 429 after retries.
var ErrRateLimited = errors.New("speech-to-text service is rate limited")

// Word is one recognized word with its timing.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Transcription is the oracle's output for one audio asset.
type Transcription struct {
	Transcript string
	Words      []Word
}

// Client talks to the speech-to-text HTTP API.
type Client struct {
	cfg    config.STTConfig
	client *http.Client
}

// NewClient builds the client with retry on transient failures.
func NewClient(cfg config.STTConfig) *Client {
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

	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: failsafehttp.NewRoundTripper(http.DefaultTransport, retryPolicy),
		},
	}
}

// TranscribeURL asks the oracle to fetch and transcribe a remote audio URL.
func (c *Client) TranscribeURL(ctx context.Context, audioURL string) (*Transcription, error) {
	payload, err := json.Marshal(map[string]string{"url": audioURL})
	if err != nil {
		return nil, err
	}
	return c.listen(ctx, bytes.NewReader(payload), "application/json")
}

// TranscribeFile streams a local audio file to the oracle.
func (c *Client) TranscribeFile(ctx context.Context, path, contentType string) (*Transcription, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return c.listen(ctx, f, contentType)
}

// listenResponse mirrors the oracle's channel/alternative response shape.
type listenResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
				Words      []Word `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (c *Client) listen(ctx context.Context, body io.Reader, contentType string) (*Transcription, error) {
	url := c.cfg.APIURL + "/v1/listen?punctuate=true&model=general"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+c.cfg.APIKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech-to-text request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("speech-to-text returned status %d: %s", resp.StatusCode, raw)
	}

	var decoded listenResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode transcription: %w", err)
	}
	if len(decoded.Results.Channels) == 0 || len(decoded.Results.Channels[0].Alternatives) == 0 {
		return &Transcription{}, nil
	}

	alt := decoded.Results.Channels[0].Alternatives[0]
	return &Transcription{Transcript: alt.Transcript, Words: alt.Words}, nil
}
