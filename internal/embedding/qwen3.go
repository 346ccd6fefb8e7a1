package embedding

import "context"

const qwen3MaxBatchSize = 10

// Qwen3Client wraps an OpenAI-compatible client but hard-caps batch size
// at 10 regardless of configured BatchSize (spec §4.1: "Qwen3 provider
// caps at 10"), since the upstream API rejects larger batches outright.
type Qwen3Client struct {
	*OpenAIClient
}

func NewQwen3Client(apiKey, model, baseURL string, dimensions, batchSize int) *Qwen3Client {
	if batchSize > qwen3MaxBatchSize || batchSize <= 0 {
		batchSize = qwen3MaxBatchSize
	}
	return &Qwen3Client{OpenAIClient: NewOpenAIClient(apiKey, model, baseURL, dimensions, batchSize, "qwen3")}
}

func (c *Qwen3Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return embedInBatches(ctx, texts, qwen3MaxBatchSize, c.embedOne)
}
