package kb

import (
	"context"
	"strings"
	"testing"

	"github.com/sweetpotato0/ticketpilot/contrib/vector/inmemory"
)

func TestSearchDiversePrefersFreshTopics(t *testing.T) {
	ctx := context.Background()
	ix, err := NewIndex(inmemory.NewInMemoryVectorStore(), &keywordEmbedder{}, wholeDocSplitter{})
	if err != nil {
		t.Fatalf("NewIndex error: %v", err)
	}

	docs := []Document{
		{ID: "refund-1", Content: "billing refund policy overview"},
		{ID: "refund-2", Content: "billing refund processing steps"},
		{ID: "outage", Content: "billing outage status page"},
	}
	if err := ix.IndexDocuments(ctx, docs...); err != nil {
		t.Fatalf("IndexDocuments error: %v", err)
	}

	results, err := ix.SearchDiverse(ctx, "billing refund", 2, 0.4)
	if err != nil {
		t.Fatalf("SearchDiverse error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !strings.Contains(results[0].Chunk.Content, "refund") {
		t.Fatalf("most relevant chunk should lead: %q", results[0].Chunk.Content)
	}
	// The two refund docs embed identically; with diversity enabled the
	// second slot goes to the outage doc instead of the duplicate.
	if !strings.Contains(results[1].Chunk.Content, "outage") {
		t.Fatalf("expected diverse second pick, got %q", results[1].Chunk.Content)
	}
}

func TestSearchDiverseLambdaOneMatchesRelevanceOrder(t *testing.T) {
	ctx := context.Background()
	ix, err := NewIndex(inmemory.NewInMemoryVectorStore(), &keywordEmbedder{}, wholeDocSplitter{})
	if err != nil {
		t.Fatalf("NewIndex error: %v", err)
	}
	if err := ix.IndexDocuments(ctx,
		Document{ID: "a", Content: "billing refund help"},
		Document{ID: "b", Content: "password outage notes"},
	); err != nil {
		t.Fatalf("IndexDocuments error: %v", err)
	}

	results, err := ix.SearchDiverse(ctx, "billing refund", 2, 1)
	if err != nil {
		t.Fatalf("SearchDiverse error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Score < results[1].Score {
		t.Fatalf("lambda=1 must keep relevance order: %v then %v", results[0].Score, results[1].Score)
	}
}
