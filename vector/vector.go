// Package vector defines the embedding primitives the knowledge base is built
// on: the Embedding row type, the VectorStore and Embedder contracts, and the
// cosine similarity used for ranking.
package vector

import (
	"context"
	"math"
)

// Embedding is one stored vector row: the text it was computed from plus the
// vector itself, keyed by a caller-chosen ID.
type Embedding struct {
	ID     string
	Vector []float32
	Text   string
}

// VectorStore is the storage contract for embeddings. Implementations live
// under contrib/vector.
type VectorStore interface {
	// AddEmbedding inserts or replaces one embedding.
	AddEmbedding(ctx context.Context, embedding *Embedding) error

	// Search returns up to topK embeddings most similar to the query
	// vector, best match first.
	Search(ctx context.Context, queryVector []float32, topK int) ([]*Embedding, error)

	// GetEmbedding fetches one embedding by ID.
	GetEmbedding(ctx context.Context, id string) (*Embedding, error)

	// DeleteEmbedding removes one embedding by ID.
	DeleteEmbedding(ctx context.Context, id string) error

	// Clear drops every embedding.
	Clear(ctx context.Context) error

	// Count returns the number of stored embeddings.
	Count(ctx context.Context) (int, error)
}

// Embedder turns text into vectors. Implementations live under
// contrib/embedder.
type Embedder interface {
	// Embed converts one text into a vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple texts in one call, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension reports the fixed width of produced vectors.
	Dimension() int
}

// CosineSimilarity returns the cosine of the angle between a and b in [−1, 1].
// Mismatched lengths and zero vectors score 0.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (float32(math.Sqrt(float64(normA))*math.Sqrt(float64(normB))) + 1e-8)
}
