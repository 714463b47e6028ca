package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/sweetpotato0/ticketpilot/llm"
	"github.com/sweetpotato0/ticketpilot/message"
	"github.com/sweetpotato0/ticketpilot/workflow"
)

type reviewerReply struct {
	Approved bool     `json:"approved"`
	Score    float64  `json:"score"`
	Feedback string   `json:"feedback"`
	Issues   []string `json:"issues"`
}

// Reviewer scores drafts and turns the model's verdict into a workflow decision.
// A draft ships only when the model approves it and its score clears the
// configured threshold.
type Reviewer struct {
	client    llm.Client
	threshold float64
}

// NewReviewer builds an LLM-backed reviewer.
func NewReviewer(client llm.Client, cfg *Config) (*Reviewer, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if cfg == nil {
		cfg = defaultConfig()
	}
	return &Reviewer{client: client, threshold: cfg.ApproveThreshold}, nil
}

// Review implements workflow.Reviewer.
func (r *Reviewer) Review(ctx context.Context, ticket *workflow.Ticket, draft string) (workflow.Review, error) {
	msgs := []*message.Message{
		message.NewMessage(message.RoleSystem, reviewerSystemPrompt),
		message.NewMessage(message.RoleUser, fmt.Sprintf(reviewerUserPrompt, ticket.Subject, ticket.Description, draft)),
	}

	resp, err := r.client.Generate(ctx, msgs)
	if err != nil {
		return workflow.Review{}, fmt.Errorf("review draft: %w", err)
	}

	reply, err := decodeJSON[reviewerReply](resp.Content)
	if err != nil {
		return workflow.Review{}, fmt.Errorf("review draft: %w", err)
	}

	decision := workflow.DecisionRejected
	if reply.Approved && reply.Score >= r.threshold {
		decision = workflow.DecisionApproved
	}

	feedback := strings.TrimSpace(reply.Feedback)
	if decision == workflow.DecisionRejected {
		if extra := strings.Join(reply.Issues, "; "); extra != "" {
			if feedback == "" {
				feedback = extra
			} else {
				feedback = feedback + " Issues: " + extra
			}
		}
		if feedback == "" {
			feedback = "draft rejected without specific feedback"
		}
	}

	return workflow.Review{
		Decision: decision,
		Score:    reply.Score,
		Feedback: feedback,
	}, nil
}
