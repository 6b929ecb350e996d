package services

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

// Embedder turns query text into a fixed-length vector. Embedding failures
// must short-circuit the caller's retrieval attempt, so EmbedText returns a
// wrapped error rather than a zero vector.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// OpenAIEmbedder computes embeddings through an OpenAI-compatible API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder builds an embedder against the given endpoint. An empty
// baseURL uses the OpenAI default; an empty model falls back to
// text-embedding-3-small.
func NewOpenAIEmbedder(apiKey, baseURL, model string) *OpenAIEmbedder {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(config),
		model:  openai.EmbeddingModel(model),
	}
}

// NewOpenAIEmbedderFromEnv builds an embedder from OPENAI_API_KEY,
// OPENAI_BASE_URL and EMBEDDING_MODEL.
func NewOpenAIEmbedderFromEnv() (*OpenAIEmbedder, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY is not set")
	}
	return NewOpenAIEmbedder(apiKey, os.Getenv("OPENAI_BASE_URL"), os.Getenv("EMBEDDING_MODEL")), nil
}

// EmbedText embeds one query string.
func (e *OpenAIEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, errors.Wrap(err, "embedding unavailable")
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("embedding unavailable: empty response")
	}
	return resp.Data[0].Embedding, nil
}
