package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go/failsafehttp"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/mediabrief/mediabrief/pkg/config"
)

// EmbeddingDimensions is the vector size stored in the database; requests
// ask the provider for exactly this many dimensions.
const EmbeddingDimensions = 384

// maxEmbeddingChars bounds the input text; embedding models have far
// smaller context windows than the summarizer.
const maxEmbeddingChars = 20000

// EmbeddingClient calls the embeddings API.
type EmbeddingClient struct {
	cfg    config.LLMConfig
	apiURL string
	client *http.Client
}

// NewEmbeddingClient builds the embeddings client. apiURL overrides the
// LLM endpoint when the embedding provider is a different service.
func NewEmbeddingClient(cfg config.LLMConfig, apiURL string) *EmbeddingClient {
	if apiURL == "" {
		apiURL = cfg.APIURL
	}
	retryPolicy := retrypolicy.Builder[*http.Response]().
		HandleIf(func(resp *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		}).
		WithBackoff(1*time.Second, 15*time.Second).
		WithJitterFactor(0.2).
		WithMaxRetries(3).
		Build()

	return &EmbeddingClient{
		cfg:    cfg,
		apiURL: strings.TrimRight(apiURL, "/"),
		client: &http.Client{
			Timeout:   60 * time.Second,
			Transport: failsafehttp.NewRoundTripper(http.DefaultTransport, retryPolicy),
		},
	}
}

type embeddingRequest struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding vector for the given text.
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if len(text) > maxEmbeddingChars {
		text = text[:maxEmbeddingChars]
	}

	payload, err := json.Marshal(embeddingRequest{
		Model:      c.cfg.EmbeddingModel,
		Input:      text,
		Dimensions: EmbeddingDimensions,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/v1/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embedding service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode embedding: %w", err)
	}
	if len(decoded.Data) == 0 {
		return nil, fmt.Errorf("embedding service returned no vectors")
	}

	vec := decoded.Data[0].Embedding
	if len(vec) != EmbeddingDimensions {
		return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(vec), EmbeddingDimensions)
	}
	return vec, nil
}
