// Package inmemory holds knowledge base vectors in process memory. It backs
// tests and single-node deployments where the index is rebuilt at startup.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	errorskg "github.com/sweetpotato0/ticketpilot/errors"
	"github.com/sweetpotato0/ticketpilot/vector"
)

// InMemoryVectorStore implements vector.VectorStore over a mutex-guarded map.
// Embeddings are copied on write and on read so callers can never alias the
// store's internal state.
type InMemoryVectorStore struct {
	mu   sync.RWMutex
	rows map[string]vector.Embedding
}

// NewInMemoryVectorStore creates an empty store.
func NewInMemoryVectorStore() *InMemoryVectorStore {
	return &InMemoryVectorStore{rows: make(map[string]vector.Embedding)}
}

// AddEmbedding inserts or replaces one embedding.
func (s *InMemoryVectorStore) AddEmbedding(ctx context.Context, embedding *vector.Embedding) error {
	if embedding == nil || embedding.ID == "" {
		return fmt.Errorf("%w: embedding requires an ID", errorskg.ErrInvalidInput)
	}
	if len(embedding.Vector) == 0 {
		return fmt.Errorf("%w: embedding %s has no vector", errorskg.ErrInvalidInput, embedding.ID)
	}

	row := *embedding
	row.Vector = append([]float32(nil), embedding.Vector...)

	s.mu.Lock()
	s.rows[row.ID] = row
	s.mu.Unlock()
	return nil
}

// Search returns up to topK embeddings ranked by cosine similarity to the
// query vector, highest first. Rows of a different dimension are skipped.
func (s *InMemoryVectorStore) Search(ctx context.Context, queryVector []float32, topK int) ([]*vector.Embedding, error) {
	if len(queryVector) == 0 {
		return nil, fmt.Errorf("%w: query vector is empty", errorskg.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = 10
	}

	type scored struct {
		row vector.Embedding
		sim float32
	}

	s.mu.RLock()
	ranked := make([]scored, 0, len(s.rows))
	for _, row := range s.rows {
		if len(row.Vector) != len(queryVector) {
			continue
		}
		ranked = append(ranked, scored{row: row, sim: vector.CosineSimilarity(queryVector, row.Vector)})
	}
	s.mu.RUnlock()

	sort.Slice(ranked, func(i, j int) bool { return ranked[i].sim > ranked[j].sim })
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	out := make([]*vector.Embedding, len(ranked))
	for i := range ranked {
		row := ranked[i].row
		row.Vector = append([]float32(nil), row.Vector...)
		out[i] = &row
	}
	return out, nil
}

// GetEmbedding fetches one embedding by ID.
func (s *InMemoryVectorStore) GetEmbedding(ctx context.Context, id string) (*vector.Embedding, error) {
	s.mu.RLock()
	row, ok := s.rows[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: embedding %s", errorskg.ErrNotFound, id)
	}
	row.Vector = append([]float32(nil), row.Vector...)
	return &row, nil
}

// DeleteEmbedding removes one embedding by ID.
func (s *InMemoryVectorStore) DeleteEmbedding(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return fmt.Errorf("%w: embedding %s", errorskg.ErrNotFound, id)
	}
	delete(s.rows, id)
	return nil
}

// Clear drops every embedding.
func (s *InMemoryVectorStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.rows = make(map[string]vector.Embedding)
	s.mu.Unlock()
	return nil
}

// Count returns the number of stored embeddings.
func (s *InMemoryVectorStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows), nil
}
