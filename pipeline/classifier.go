package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/sweetpotato0/ticketpilot/llm"
	"github.com/sweetpotato0/ticketpilot/message"
	"github.com/sweetpotato0/ticketpilot/pkg/logging"
	"github.com/sweetpotato0/ticketpilot/workflow"
)

type classifierReply struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Classifier maps a ticket onto the closed category vocabulary with one LLM call.
type Classifier struct {
	client llm.Client
}

// NewClassifier builds an LLM-backed classifier.
func NewClassifier(client llm.Client) (*Classifier, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	return &Classifier{client: client}, nil
}

// Classify implements workflow.Classifier.
func (c *Classifier) Classify(ctx context.Context, ticket *workflow.Ticket) (workflow.Classification, error) {
	msgs := []*message.Message{
		message.NewMessage(message.RoleSystem, classifierSystemPrompt),
		message.NewMessage(message.RoleUser, fmt.Sprintf(classifierUserPrompt, ticket.Subject, ticket.Description)),
	}

	resp, err := c.client.Generate(ctx, msgs)
	if err != nil {
		return workflow.Classification{}, fmt.Errorf("classify ticket: %w", err)
	}

	reply, err := decodeJSON[classifierReply](resp.Content)
	if err != nil {
		return workflow.Classification{}, fmt.Errorf("classify ticket: %w", err)
	}

	category := strings.ToLower(strings.TrimSpace(reply.Category))
	if !validCategory(category) {
		// The model answered but wandered off the vocabulary; fold the
		// ticket into the catch-all rather than failing the run.
		logging.WithComponent("pipeline").Warn("unknown category from classifier",
			"category", reply.Category, "ticket_id", ticket.ID)
		category = CategoryGeneral
	}

	confidence := reply.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return workflow.Classification{Category: category, Confidence: confidence}, nil
}

func validCategory(category string) bool {
	for _, known := range Categories {
		if category == known {
			return true
		}
	}
	return false
}
