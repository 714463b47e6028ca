package workflow

import "time"

// Stage identifies a position in the ticket processing state machine.
type Stage string

const (
	StageIntake      Stage = "intake"
	StageClassifying Stage = "classifying"
	StageRetrieving  Stage = "retrieving"
	StageDrafting    Stage = "drafting"
	StageReviewing   Stage = "reviewing"
	StageRefining    Stage = "refining"
	StageApproved    Stage = "approved"
	StageEscalated   Stage = "escalated"
)

// Terminal reports whether the stage ends a run.
func (s Stage) Terminal() bool {
	return s == StageApproved || s == StageEscalated
}

// Decision is the reviewer's verdict on a draft.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// ContextDoc is one retrieved document with its relevance score,
// highest relevance first in the retrieved sequence.
type ContextDoc struct {
	Text  string  `json:"text"`
	Score float32 `json:"score"`
}

// Review is one reviewer verdict over a draft.
type Review struct {
	Decision Decision `json:"decision"`
	Score    float64  `json:"score"`
	Feedback string   `json:"feedback"`
}

// State is the mutable record threaded through one ticket's processing run.
// It is owned exclusively by that run; no locking is required.
type State struct {
	Ticket *Ticket
	Stage  Stage

	Category   string
	Confidence float64

	Queries          []string
	RetrievedContext []ContextDoc

	DraftHistory  []string
	ReviewHistory []Review

	RetryCount int
	MaxRetries int

	FinalResponse    string
	Escalated        bool
	EscalationReason string

	StartedAt time.Time
}

// NewState creates the initial state for a validated ticket.
func NewState(ticket *Ticket, maxRetries int) *State {
	return &State{
		Ticket:     ticket,
		Stage:      StageIntake,
		MaxRetries: maxRetries,
		Queries:    []string{ticket.Subject + " " + ticket.Description},
		StartedAt:  time.Now().UTC(),
	}
}

// LatestDraft returns the most recent draft, or "" when none exists.
func (s *State) LatestDraft() string {
	if len(s.DraftHistory) == 0 {
		return ""
	}
	return s.DraftHistory[len(s.DraftHistory)-1]
}

// LatestFeedback returns the most recent reviewer feedback, or "" when no
// review has happened yet.
func (s *State) LatestFeedback() string {
	if len(s.ReviewHistory) == 0 {
		return ""
	}
	return s.ReviewHistory[len(s.ReviewHistory)-1].Feedback
}

// FinalReviewScore returns the score of the last review, or 0 when none exists.
func (s *State) FinalReviewScore() float64 {
	if len(s.ReviewHistory) == 0 {
		return 0
	}
	return s.ReviewHistory[len(s.ReviewHistory)-1].Score
}
