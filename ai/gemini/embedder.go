package gemini

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	"github.com/poiesic/ragingest/ai"
	"google.golang.org/api/option"
)

// Embedder implements ai.Embedder using the Gemini embedding API.
type Embedder struct {
	client    *genai.Client
	model     *genai.EmbeddingModel
	batchSize int
	logger    *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

func newEmbedder(ctx context.Context, config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, err
	}

	return &Embedder{
		client:    client,
		model:     client.EmbeddingModel(config.Model),
		batchSize: config.BatchSize,
		logger:    slog.Default().With("component", "gemini-embedder", "model", config.Model),
	}, nil
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	e.logger.Debug("generating embedding for single text", "length", len(text))

	resp, err := e.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		e.logger.Error("failed to generate embedding", "err", err)
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if resp.Embedding == nil {
		e.logger.Warn("embedder returned empty result")
		return []float32{}, nil
	}

	return resp.Embedding.Values, nil
}

// EmbedTexts batches texts into BatchEmbedContents requests of at most batchSize texts.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))

		batch := e.model.NewBatch()
		for _, t := range texts[start:end] {
			batch.AddContent(genai.Text(t))
		}

		resp, err := e.model.BatchEmbedContents(ctx, batch)
		if err != nil {
			e.logger.Error("failed to generate embeddings", "count", end-start, "err", err)
			return nil, fmt.Errorf("gemini batch embed: %w", err)
		}

		for _, emb := range resp.Embeddings {
			out = append(out, emb.Values)
		}
	}

	return out, nil
}

// Close releases the underlying client.
func (e *Embedder) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
