package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// OpenAIClient implements Client against OpenAI's embeddings API and any
// OpenAI-compatible endpoint (provider "openai" or "openai_compatible",
// distinguished only by BaseURL).
type OpenAIClient struct {
	apiKey     string
	model      string
	baseURL    string
	dimensions int
	batchSize  int
	provider   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewOpenAIClient(apiKey, model, baseURL string, dimensions, batchSize int, provider string) *OpenAIClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIClient{
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
		dimensions: dimensions,
		batchSize:  batchSize,
		provider:   provider,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		// OpenAI's embeddings endpoint is generous; this just keeps a
		// single project's ingestion pipeline from hammering it.
		limiter: rate.NewLimiter(rate.Limit(20), 20),
	}
}

func (c *OpenAIClient) Dimensions() int   { return c.dimensions }
func (c *OpenAIClient) Model() string     { return c.model }
func (c *OpenAIClient) Provider() string  { return c.provider }
func (c *OpenAIClient) MaxBatchSize() int { return c.batchSize }

func (c *OpenAIClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.embedOne(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embedding: empty response for query")
	}
	return vecs[0], nil
}

func (c *OpenAIClient) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return embedInBatches(ctx, texts, c.batchSize, c.embedOne)
}

type openAIEmbedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type openAIEmbedResponse struct {
	Data  []openAIEmbedDatum `json:"data"`
	Error *openAIError       `json:"error,omitempty"`
}

type openAIEmbedDatum struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (c *OpenAIClient) embedOne(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(openAIEmbedRequest{Input: texts, Model: c.model})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embed response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embeddings API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result openAIEmbedResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("unmarshal embed response: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("embeddings API error: %s (%s)", result.Error.Message, result.Error.Type)
	}

	vectors := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < len(vectors) {
			vectors[d.Index] = d.Embedding
		}
	}
	return vectors, nil
}
