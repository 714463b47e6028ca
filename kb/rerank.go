package kb

import (
	"context"
	"fmt"
	"math"

	"github.com/sweetpotato0/ticketpilot/vector"
)

// SearchDiverse embeds the query and selects up to topK chunks by Max
// Marginal Relevance: relevance to the query balanced against similarity to
// chunks already selected. lambda=1 degenerates to plain relevance order,
// lower values trade relevance for diversity.
func (ix *Index) SearchDiverse(ctx context.Context, query string, topK int, lambda float32) ([]Result, error) {
	if lambda <= 0 || lambda > 1 {
		lambda = 1
	}
	queryVec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	// Overfetch so the diversity pass has candidates to choose between.
	fetch := topK * 3
	if fetch < topK {
		fetch = topK
	}
	hits, err := ix.store.Search(ctx, queryVec, fetch)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	type candidate struct {
		hit   *vector.Embedding
		score float32
	}
	remaining := make([]candidate, 0, len(hits))
	for _, hit := range hits {
		remaining = append(remaining, candidate{
			hit:   hit,
			score: vector.CosineSimilarity(queryVec, hit.Vector),
		})
	}

	results := make([]Result, 0, topK)
	var picked []*vector.Embedding
	for len(remaining) > 0 && len(results) < topK {
		bestIdx := -1
		bestScore := float32(math.Inf(-1))
		for idx, cand := range remaining {
			penalty := float32(0)
			for _, prev := range picked {
				if len(prev.Vector) != len(cand.hit.Vector) {
					continue
				}
				if sim := vector.CosineSimilarity(cand.hit.Vector, prev.Vector); sim > penalty {
					penalty = sim
				}
			}
			mmr := lambda*cand.score - (1-lambda)*penalty
			if mmr > bestScore {
				bestScore = mmr
				bestIdx = idx
			}
		}
		if bestIdx == -1 {
			break
		}
		best := remaining[bestIdx]
		chunk, ok := ix.lookupChunk(best.hit.ID)
		if !ok {
			chunk = Chunk{ID: best.hit.ID, Content: best.hit.Text}
		}
		results = append(results, Result{Chunk: chunk, Score: best.score})
		picked = append(picked, best.hit)
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return results, nil
}
