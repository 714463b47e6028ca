package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/sweetpotato0/ticketpilot/llm"
	"github.com/sweetpotato0/ticketpilot/message"
	"github.com/sweetpotato0/ticketpilot/workflow"
)

type refinerReply struct {
	RefinedQueries []string `json:"refined_queries"`
}

// QueryRefiner rewrites retrieval queries after a rejected draft so the next
// attempt searches the knowledge base with fresh vocabulary.
type QueryRefiner struct {
	client     llm.Client
	maxQueries int
}

// NewQueryRefiner builds an LLM-backed query refiner.
func NewQueryRefiner(client llm.Client, cfg *Config) (*QueryRefiner, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if cfg == nil {
		cfg = defaultConfig()
	}
	return &QueryRefiner{client: client, maxQueries: cfg.MaxRefinedQueries}, nil
}

// Refine implements workflow.QueryRefiner.
func (r *QueryRefiner) Refine(ctx context.Context, ticket *workflow.Ticket, feedback string, previousQueries []string) ([]string, error) {
	previous := strings.Join(previousQueries, "\n")
	if previous == "" {
		previous = "(none)"
	}

	msgs := []*message.Message{
		message.NewMessage(message.RoleSystem, refinerSystemPrompt),
		message.NewMessage(message.RoleUser, fmt.Sprintf(refinerUserPrompt, ticket.Subject, ticket.Description, feedback, previous)),
	}

	resp, err := r.client.Generate(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("refine queries: %w", err)
	}

	reply, err := decodeJSON[refinerReply](resp.Content)
	if err != nil {
		return nil, fmt.Errorf("refine queries: %w", err)
	}

	queries := dedupeQueries(reply.RefinedQueries, r.maxQueries)
	if len(queries) == 0 {
		return nil, fmt.Errorf("refine queries: model returned no usable queries")
	}
	return queries, nil
}

func dedupeQueries(raw []string, max int) []string {
	seen := make(map[string]struct{}, len(raw))
	queries := make([]string, 0, len(raw))
	for _, q := range raw {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		key := strings.ToLower(q)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		queries = append(queries, q)
		if max > 0 && len(queries) == max {
			break
		}
	}
	return queries
}
