package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/sweetpotato0/ticketpilot/kb"
	"github.com/sweetpotato0/ticketpilot/workflow"
)

// Retriever adapts the knowledge base index to the workflow retrieval contract.
// The category acts as a soft filter: chunks whose source document carries a
// matching category tag rank ahead of untagged or mismatched ones.
type Retriever struct {
	index    *kb.Index
	topK     int
	minScore float32
	lambda   float32
}

// NewRetriever builds a knowledge-base-backed retriever.
func NewRetriever(index *kb.Index, cfg *Config) (*Retriever, error) {
	if index == nil {
		return nil, fmt.Errorf("knowledge base index is required")
	}
	if cfg == nil {
		cfg = defaultConfig()
	}
	return &Retriever{
		index:    index,
		topK:     cfg.TopK,
		minScore: cfg.MinScore,
		lambda:   cfg.MMRLambda,
	}, nil
}

// Retrieve implements workflow.Retriever. An empty result is valid, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query, category string) ([]workflow.ContextDoc, error) {
	// Overfetch so the category preference has candidates to reorder.
	hits, err := r.index.SearchDiverse(ctx, query, r.topK*2, r.lambda)
	if err != nil {
		return nil, fmt.Errorf("search knowledge base: %w", err)
	}

	type scored struct {
		doc     workflow.ContextDoc
		matches bool
	}
	candidates := make([]scored, 0, len(hits))
	for _, hit := range hits {
		if hit.Score < r.minScore {
			continue
		}
		candidates = append(candidates, scored{
			doc:     workflow.ContextDoc{Text: hit.Chunk.Content, Score: hit.Score},
			matches: r.chunkMatchesCategory(hit.Chunk, category),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].matches != candidates[j].matches {
			return candidates[i].matches
		}
		return candidates[i].doc.Score > candidates[j].doc.Score
	})

	if len(candidates) > r.topK {
		candidates = candidates[:r.topK]
	}
	docs := make([]workflow.ContextDoc, 0, len(candidates))
	for _, c := range candidates {
		docs = append(docs, c.doc)
	}
	return docs, nil
}

func (r *Retriever) chunkMatchesCategory(chunk kb.Chunk, category string) bool {
	if category == "" {
		return false
	}
	if tag, ok := chunk.Metadata["category"].(string); ok && tag == category {
		return true
	}
	doc, ok := r.index.Document(chunk.DocumentID)
	if !ok {
		return false
	}
	tag, ok := doc.Metadata["category"].(string)
	return ok && tag == category
}
