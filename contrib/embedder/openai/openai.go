// Package openai provides the embedding model behind the support knowledge
// base, backed by the official OpenAI SDK.
package openai

import (
	"context"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sweetpotato0/ticketpilot/vector"
)

// Embedder implements vector.Embedder over the OpenAI embeddings endpoint.
// Vectors are padded or truncated to the configured dimension so the backing
// store always receives fixed-width rows.
type Embedder struct {
	client    openaisdk.Client
	model     openaisdk.EmbeddingModel
	dimension int
}

// New builds an Embedder. baseURL is optional and supports OpenAI-compatible
// gateways.
func New(apiKey, baseURL string, model openaisdk.EmbeddingModel, dimension int) vector.Embedder {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Embedder{
		client:    openaisdk.NewClient(opts...),
		model:     model,
		dimension: dimension,
	}
}

// Dimension returns the fixed width of produced vectors.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// Embed converts one text into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch converts multiple texts in one API call, preserving input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Model: e.model,
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("embed %d texts: %w", len(texts), err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(resp.Data))
	for i, emb := range resp.Data {
		out[i] = e.toFixedWidth(emb.Embedding)
	}
	return out, nil
}

func (e *Embedder) toFixedWidth(raw []float64) []float32 {
	vec := make([]float32, e.dimension)
	for i := 0; i < len(raw) && i < e.dimension; i++ {
		vec[i] = float32(raw[i])
	}
	return vec
}
