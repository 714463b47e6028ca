package workflow

import "errors"

// Error taxonomy for ticket processing. Collaborator failures convert to an
// Escalated terminal state; ErrInvalidTicket rejects the run before it starts.
var (
	// ErrInvalidTicket indicates the submitted ticket failed intake validation
	ErrInvalidTicket = errors.New("invalid ticket")

	// ErrClassification indicates the classifier collaborator failed
	ErrClassification = errors.New("classification error")

	// ErrRetrieval indicates the retriever collaborator failed
	ErrRetrieval = errors.New("retrieval error")

	// ErrGeneration indicates the drafter or query refiner failed
	ErrGeneration = errors.New("generation error")

	// ErrReview indicates the reviewer collaborator failed
	ErrReview = errors.New("review error")
)

// ReasonMaxRetries is the escalation reason used when the bounded revision
// loop exhausts its retry budget. This is a normal terminal transition, not a
// failure.
const ReasonMaxRetries = "max retries exceeded"
