package caseindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrInvalidConfig indicates an unusable embedder configuration.
var ErrInvalidConfig = errors.New("invalid embedder configuration")

// Embedder turns text into vectors for indexing and search.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedderConfig configures the OpenAI-compatible embedding client. Any
// endpoint speaking the OpenAI embeddings API works via BaseURL.
type EmbedderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

// LangchainEmbedder adapts a langchaingo embeddings client to Embedder.
type LangchainEmbedder struct {
	embedder *embeddings.EmbedderImpl
}

// NewLangchainEmbedder creates an embedding client from the configuration.
func NewLangchainEmbedder(cfg EmbedderConfig) (*LangchainEmbedder, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model required", ErrInvalidConfig)
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		// langchaingo requires a token even for keyless local endpoints.
		apiKey = "placeholder"
	}

	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating embedding client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	return &LangchainEmbedder{embedder: embedder}, nil
}

// EmbedQuery embeds one query string.
func (e *LangchainEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embedder.EmbedQuery(ctx, text)
}

// EmbedDocuments embeds a batch of documents.
func (e *LangchainEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embedder.EmbedDocuments(ctx, texts)
}

var _ Embedder = (*LangchainEmbedder)(nil)
