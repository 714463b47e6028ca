package kb

import (
	"context"
	"fmt"
	"sync"

	"github.com/sweetpotato0/ticketpilot/vector"
)

// Result captures a single chunk returned from a knowledge base search.
type Result struct {
	Chunk Chunk
	Score float32
}

// Splitter breaks a document into indexable chunks.
type Splitter interface {
	Chunk(ctx context.Context, doc Document) ([]Chunk, error)
}

// Index coordinates chunking, embedding and similarity search over the
// support knowledge base.
type Index struct {
	store    vector.VectorStore
	embedder vector.Embedder
	chunker  Splitter

	mu        sync.RWMutex
	documents map[string]Document
	chunks    map[string]Chunk
}

// NewIndex creates an index over the given store and embedder. A nil splitter
// falls back to the token-aware chunker with default settings.
func NewIndex(store vector.VectorStore, emb vector.Embedder, chunker Splitter) (*Index, error) {
	if store == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	if emb == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if chunker == nil {
		def, err := NewChunker("")
		if err != nil {
			return nil, err
		}
		chunker = def
	}
	return &Index{
		store:     store,
		embedder:  emb,
		chunker:   chunker,
		documents: make(map[string]Document),
		chunks:    make(map[string]Chunk),
	}, nil
}

// IndexDocuments ingests documents -> chunks -> embeddings -> vector store.
func (ix *Index) IndexDocuments(ctx context.Context, docs ...Document) error {
	for _, doc := range docs {
		EnsureDocumentID(&doc)
		chunks, err := ix.chunker.Chunk(ctx, doc)
		if err != nil {
			return fmt.Errorf("chunk document %s: %w", doc.ID, err)
		}

		for _, chunk := range chunks {
			vec, err := ix.embedder.Embed(ctx, chunk.Content)
			if err != nil {
				return fmt.Errorf("embed chunk %s: %w", chunk.ID, err)
			}
			embedding := &vector.Embedding{
				ID:     chunk.ID,
				Vector: vec,
				Text:   chunk.Content,
			}
			if err := ix.store.AddEmbedding(ctx, embedding); err != nil {
				return fmt.Errorf("store chunk %s: %w", chunk.ID, err)
			}

			ix.mu.Lock()
			ix.chunks[chunk.ID] = chunk.Clone()
			ix.documents[doc.ID] = doc.Clone()
			ix.mu.Unlock()
		}
	}
	return nil
}

// Search embeds the query and returns the topK closest chunks by
// cosine similarity. An empty result is not an error.
func (ix *Index) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	queryVec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := ix.store.Search(ctx, queryVec, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		chunk, ok := ix.lookupChunk(hit.ID)
		if !ok {
			// Chunk indexed by an earlier process; reconstruct from the hit.
			chunk = Chunk{ID: hit.ID, Content: hit.Text}
		}
		results = append(results, Result{
			Chunk: chunk,
			Score: vector.CosineSimilarity(queryVec, hit.Vector),
		})
	}
	return results, nil
}

// Document fetches a document by ID.
func (ix *Index) Document(id string) (Document, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	doc, ok := ix.documents[id]
	return doc.Clone(), ok
}

func (ix *Index) lookupChunk(id string) (Chunk, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	chunk, ok := ix.chunks[id]
	if !ok {
		return Chunk{}, false
	}
	return chunk.Clone(), true
}

// Clear drops all indexed state.
func (ix *Index) Clear(ctx context.Context) error {
	if err := ix.store.Clear(ctx); err != nil {
		return err
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.chunks = make(map[string]Chunk)
	ix.documents = make(map[string]Document)
	return nil
}

// Count returns number of chunks indexed.
func (ix *Index) Count(ctx context.Context) (int, error) {
	return ix.store.Count(ctx)
}
