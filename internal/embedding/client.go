package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/andreysafonov/vestnik/config"
)

// Client calls an OpenAI-compatible embeddings endpoint. Rate-limit
// responses are retried with exponential backoff, bounded by MaxRetries;
// every other failure is returned to the caller immediately.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	dimensions  int
	maxRetries  int
	baseBackoff time.Duration
	httpClient  *http.Client
}

// NewClient builds a Client from config.
func NewClient(cfg config.EmbeddingConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	return &Client{
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		dimensions:  cfg.Dimensions,
		maxRetries:  retries,
		baseBackoff: time.Second,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// Embed returns the vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vecs))
	}
	return vecs[0], nil
}

// EmbedMany returns one vector per input text, in input order.
func (c *Client) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(map[string]interface{}{
		"model": c.model,
		"input": texts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastStatus int
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.baseBackoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		vecs, status, err := c.doRequest(ctx, body)
		if err != nil {
			return nil, err
		}
		if status == http.StatusTooManyRequests {
			lastStatus = status
			continue
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("embedding API returned status %d", status)
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("embedding API returned %d vectors for %d inputs", len(vecs), len(texts))
		}
		for i, v := range vecs {
			if c.dimensions > 0 && len(v) != c.dimensions {
				return nil, fmt.Errorf("embedding %d has dimension %d, want %d", i, len(v), c.dimensions)
			}
		}
		return vecs, nil
	}
	return nil, fmt.Errorf("embedding API rate limited after %d attempts (status %d)", c.maxRetries, lastStatus)
}

func (c *Client) doRequest(ctx context.Context, body []byte) ([][]float32, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, nil
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
	}

	vecs := make([][]float32, len(apiResp.Data))
	for i, d := range apiResp.Data {
		vecs[i] = d.Embedding
	}
	return vecs, resp.StatusCode, nil
}
