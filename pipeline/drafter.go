package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/sweetpotato0/ticketpilot/llm"
	"github.com/sweetpotato0/ticketpilot/message"
	"github.com/sweetpotato0/ticketpilot/workflow"
)

// Drafter generates candidate support responses grounded in retrieved context.
type Drafter struct {
	client llm.Client
}

// NewDrafter builds an LLM-backed drafter.
func NewDrafter(client llm.Client) (*Drafter, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	return &Drafter{client: client}, nil
}

// Draft implements workflow.Drafter. A non-empty priorFeedback switches to the
// redraft prompt so the model sees what the reviewer rejected.
func (d *Drafter) Draft(ctx context.Context, ticket *workflow.Ticket, docs []workflow.ContextDoc, priorFeedback string) (string, error) {
	excerpts := formatExcerpts(docs)

	var user string
	if priorFeedback == "" {
		user = fmt.Sprintf(drafterUserPrompt, ticket.Subject, ticket.Description, excerpts)
	} else {
		user = fmt.Sprintf(redraftUserPrompt, ticket.Subject, ticket.Description, excerpts, priorFeedback)
	}

	msgs := []*message.Message{
		message.NewMessage(message.RoleSystem, drafterSystemPrompt),
		message.NewMessage(message.RoleUser, user),
	}

	resp, err := d.client.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("draft response: %w", err)
	}

	draft := strings.TrimSpace(resp.Content)
	if draft == "" {
		return "", fmt.Errorf("draft response: model returned empty output")
	}
	return draft, nil
}

// formatExcerpts renders retrieved context as a numbered list for the prompt.
func formatExcerpts(docs []workflow.ContextDoc) string {
	if len(docs) == 0 {
		return noContextPlaceholder
	}
	var b strings.Builder
	for i, doc := range docs {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, strings.TrimSpace(doc.Text))
	}
	return strings.TrimSpace(b.String())
}
