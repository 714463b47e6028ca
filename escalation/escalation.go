package escalation

import (
	"context"
	"time"
)

// Record is one append-only escalation log entry, built when a ticket run
// reaches the escalated terminal state. Records are never mutated afterward.
type Record struct {
	Timestamp        time.Time `json:"timestamp"`
	TicketID         string    `json:"ticket_id"`
	Subject          string    `json:"subject"`
	Description      string    `json:"description"`
	Category         string    `json:"category"`
	Confidence       float64   `json:"classification_confidence"`
	NumDrafts        int       `json:"num_drafts"`
	NumReviews       int       `json:"num_reviews"`
	FinalReviewScore float64   `json:"final_review_score"`
	Reason           string    `json:"escalation_reason"`
	FailedDrafts     []string  `json:"failed_drafts"`
	ReviewerFeedback []string  `json:"reviewer_feedback"`
}

// Log is a durable append-only escalation log. Append must be atomic per
// record under concurrent writers; List returns all records sorted by
// timestamp ascending.
type Log interface {
	Append(ctx context.Context, record Record) error
	List(ctx context.Context) ([]Record, error)
}
