package workflow

import "context"

// Classification is the classifier's verdict for a ticket.
type Classification struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// Classifier maps ticket text to a category and confidence.
type Classifier interface {
	Classify(ctx context.Context, ticket *Ticket) (Classification, error)
}

// Retriever maps a query and category to ranked context documents.
// An empty result is valid, not an error.
type Retriever interface {
	Retrieve(ctx context.Context, query, category string) ([]ContextDoc, error)
}

// Drafter produces a candidate response from the ticket, retrieved context
// and the previous reviewer feedback (empty on the first attempt).
type Drafter interface {
	Draft(ctx context.Context, ticket *Ticket, docs []ContextDoc, priorFeedback string) (string, error)
}

// Reviewer scores a draft and decides whether it can be sent.
type Reviewer interface {
	Review(ctx context.Context, ticket *Ticket, draft string) (Review, error)
}

// QueryRefiner produces improved retrieval queries after a rejection.
type QueryRefiner interface {
	Refine(ctx context.Context, ticket *Ticket, feedback string, previousQueries []string) ([]string, error)
}
