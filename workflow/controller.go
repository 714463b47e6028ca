package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sweetpotato0/ticketpilot/escalation"
	"github.com/sweetpotato0/ticketpilot/pkg/logging"
	"github.com/sweetpotato0/ticketpilot/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// EscalationMessage is the customer-facing reply returned on escalation.
const EscalationMessage = "I apologize, but your request requires human review to ensure we provide " +
	"the most accurate assistance. A support specialist will review your case " +
	"and respond within 24 hours. Thank you for your patience."

// Config controls controller behaviour.
type Config struct {
	// MaxRetries bounds the refine/retrieve/draft/review loop. The run
	// terminates within MaxRetries+1 review cycles regardless of
	// collaborator behaviour.
	MaxRetries int

	// StepTimeout bounds each collaborator call. A timeout escalates the
	// ticket like any other collaborator failure.
	StepTimeout time.Duration
}

// DefaultConfig returns the controller defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:  2,
		StepTimeout: 60 * time.Second,
	}
}

// ResultType distinguishes the two terminal outcomes.
type ResultType string

const (
	ResultFinal     ResultType = "final"
	ResultEscalated ResultType = "escalated"
)

// Metadata summarises a completed run.
type Metadata struct {
	Category         string        `json:"category"`
	Confidence       float64       `json:"confidence"`
	NumDrafts        int           `json:"num_drafts"`
	NumReviews       int           `json:"num_reviews"`
	FinalReviewScore float64       `json:"final_review_score"`
	ProcessingTime   time.Duration `json:"processing_time"`
}

// Result is the terminal outcome of one run: exactly one of the automated
// final response or an escalation record.
type Result struct {
	Type     ResultType         `json:"type"`
	Response string             `json:"response"`
	Metadata Metadata           `json:"metadata"`
	Record   *escalation.Record `json:"record,omitempty"`
	State    *State             `json:"-"`
}

// Controller is the state machine driving a ticket from intake to a terminal
// state. Collaborators are pluggable contracts so the controller can be
// exercised with deterministic fakes.
type Controller struct {
	classifier Classifier
	retriever  Retriever
	drafter    Drafter
	reviewer   Reviewer
	refiner    QueryRefiner

	log      escalation.Log
	observer Observer
	cfg      Config
	logger   *slog.Logger
	tracer   trace.Tracer
}

// ControllerOption customises the controller.
type ControllerOption func(*Controller)

// WithEscalationLog sets the durable escalation log.
func WithEscalationLog(log escalation.Log) ControllerOption {
	return func(c *Controller) { c.log = log }
}

// WithObserver registers a progress event sink.
func WithObserver(obs Observer) ControllerOption {
	return func(c *Controller) { c.observer = obs }
}

// WithConfig overrides the default controller config.
func WithConfig(cfg Config) ControllerOption {
	return func(c *Controller) {
		if cfg.MaxRetries >= 0 {
			c.cfg.MaxRetries = cfg.MaxRetries
		}
		if cfg.StepTimeout > 0 {
			c.cfg.StepTimeout = cfg.StepTimeout
		}
	}
}

// NewController wires the five collaborator contracts into a controller.
func NewController(classifier Classifier, retriever Retriever, drafter Drafter, reviewer Reviewer, refiner QueryRefiner, opts ...ControllerOption) (*Controller, error) {
	if classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if drafter == nil {
		return nil, fmt.Errorf("drafter is required")
	}
	if reviewer == nil {
		return nil, fmt.Errorf("reviewer is required")
	}
	if refiner == nil {
		return nil, fmt.Errorf("query refiner is required")
	}

	c := &Controller{
		classifier: classifier,
		retriever:  retriever,
		drafter:    drafter,
		reviewer:   reviewer,
		refiner:    refiner,
		cfg:        DefaultConfig(),
		logger:     logging.WithComponent("workflow"),
		tracer:     telemetry.Tracer("ticketpilot/workflow"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Run drives one ticket through the state machine. Every run ends in a
// terminal state with either a final response or an escalation record, unless
// the caller cancels the context, in which case the run aborts without
// writing a partial record.
func (c *Controller) Run(ctx context.Context, ticket *Ticket) (*Result, error) {
	if ticket == nil {
		return nil, fmt.Errorf("%w: ticket is nil", ErrInvalidTicket)
	}

	ctx, span := c.tracer.Start(ctx, "workflow.run",
		trace.WithAttributes(attribute.String("ticket.id", ticket.ID)))
	var runErr error
	defer func() { telemetry.End(span, runErr) }()

	st := NewState(ticket, c.cfg.MaxRetries)
	logger := c.logger.With("ticket_id", ticket.ID)
	logger.Info("run started", "subject", trimForLog(ticket.Subject, 80))
	c.transition(ctx, st, StageIntake)

	for !st.Stage.Terminal() {
		if err := ctx.Err(); err != nil {
			runErr = err
			return nil, err
		}

		next, err := c.advance(ctx, st, logger)
		if err != nil {
			// Caller cancellation aborts the run outright; partial
			// escalation records are never written.
			if ctx.Err() != nil {
				runErr = ctx.Err()
				return nil, runErr
			}
			reason := failureReason(st.Stage, err)
			logger.Error("collaborator failure", "stage", st.Stage, "error", err)
			return c.escalate(ctx, st, reason, logger)
		}
		c.transition(ctx, st, next)
	}

	if st.Stage == StageEscalated {
		// Reached via the bounded retry loop.
		return c.finishEscalated(ctx, st, logger)
	}

	logger.Info("run approved",
		"category", st.Category,
		"drafts", len(st.DraftHistory),
		"retries", st.RetryCount,
		"score", st.FinalReviewScore(),
	)
	return &Result{
		Type:     ResultFinal,
		Response: st.FinalResponse,
		Metadata: c.metadata(st),
		State:    st,
	}, nil
}

// advance executes the work of the current stage and returns the next stage.
// It is the single place transition rules live.
func (c *Controller) advance(ctx context.Context, st *State, logger *slog.Logger) (Stage, error) {
	switch st.Stage {
	case StageIntake:
		return StageClassifying, nil

	case StageClassifying:
		cls, err := c.classify(ctx, st)
		if err != nil {
			return st.Stage, err
		}
		st.Category = cls.Category
		st.Confidence = cls.Confidence
		logger.Info("ticket classified", "category", cls.Category, "confidence", cls.Confidence)
		return StageRetrieving, nil

	case StageRetrieving:
		docs, err := c.retrieve(ctx, st)
		if err != nil {
			return st.Stage, err
		}
		st.RetrievedContext = append(st.RetrievedContext, docs...)
		logger.Info("context retrieved", "hits", len(docs), "total", len(st.RetrievedContext))
		// Empty context is fine; drafting proceeds regardless.
		return StageDrafting, nil

	case StageDrafting:
		draft, err := c.draft(ctx, st)
		if err != nil {
			return st.Stage, err
		}
		st.DraftHistory = append(st.DraftHistory, draft)
		logger.Info("draft produced", "attempt", len(st.DraftHistory), "length", len(draft))
		return StageReviewing, nil

	case StageReviewing:
		review, err := c.review(ctx, st)
		if err != nil {
			return st.Stage, err
		}
		st.ReviewHistory = append(st.ReviewHistory, review)
		logger.Info("draft reviewed", "decision", review.Decision, "score", review.Score)

		if review.Decision == DecisionApproved {
			st.FinalResponse = st.LatestDraft()
			return StageApproved, nil
		}
		if st.RetryCount >= st.MaxRetries {
			st.EscalationReason = ReasonMaxRetries
			return StageEscalated, nil
		}
		st.RetryCount++
		return StageRefining, nil

	case StageRefining:
		queries, err := c.refine(ctx, st)
		if err != nil {
			return st.Stage, err
		}
		if len(queries) > 0 {
			st.Queries = queries
		}
		logger.Info("queries refined", "count", len(queries), "retry", st.RetryCount)
		return StageRetrieving, nil

	default:
		return st.Stage, fmt.Errorf("no transition from stage %q", st.Stage)
	}
}

func (c *Controller) classify(ctx context.Context, st *State) (Classification, error) {
	ctx, cancel := c.stepContext(ctx)
	defer cancel()
	ctx, span := c.tracer.Start(ctx, "workflow.classify")
	cls, err := c.classifier.Classify(ctx, st.Ticket)
	telemetry.End(span, err)
	if err != nil {
		return Classification{}, wrapStep(ErrClassification, err)
	}
	return cls, nil
}

func (c *Controller) retrieve(ctx context.Context, st *State) ([]ContextDoc, error) {
	ctx, cancel := c.stepContext(ctx)
	defer cancel()
	ctx, span := c.tracer.Start(ctx, "workflow.retrieve")

	seen := make(map[string]struct{}, len(st.RetrievedContext))
	for _, doc := range st.RetrievedContext {
		seen[doc.Text] = struct{}{}
	}

	var docs []ContextDoc
	for _, query := range st.Queries {
		hits, err := c.retriever.Retrieve(ctx, query, st.Category)
		if err != nil {
			telemetry.End(span, err)
			return nil, wrapStep(ErrRetrieval, err)
		}
		for _, hit := range hits {
			if _, dup := seen[hit.Text]; dup {
				continue
			}
			seen[hit.Text] = struct{}{}
			docs = append(docs, hit)
		}
	}
	telemetry.End(span, nil)
	return docs, nil
}

func (c *Controller) draft(ctx context.Context, st *State) (string, error) {
	ctx, cancel := c.stepContext(ctx)
	defer cancel()
	ctx, span := c.tracer.Start(ctx, "workflow.draft")
	draft, err := c.drafter.Draft(ctx, st.Ticket, st.RetrievedContext, st.LatestFeedback())
	telemetry.End(span, err)
	if err != nil {
		return "", wrapStep(ErrGeneration, err)
	}
	return draft, nil
}

func (c *Controller) review(ctx context.Context, st *State) (Review, error) {
	ctx, cancel := c.stepContext(ctx)
	defer cancel()
	ctx, span := c.tracer.Start(ctx, "workflow.review")
	review, err := c.reviewer.Review(ctx, st.Ticket, st.LatestDraft())
	telemetry.End(span, err)
	if err != nil {
		return Review{}, wrapStep(ErrReview, err)
	}
	return review, nil
}

func (c *Controller) refine(ctx context.Context, st *State) ([]string, error) {
	ctx, cancel := c.stepContext(ctx)
	defer cancel()
	ctx, span := c.tracer.Start(ctx, "workflow.refine")
	queries, err := c.refiner.Refine(ctx, st.Ticket, st.LatestFeedback(), st.Queries)
	telemetry.End(span, err)
	if err != nil {
		return nil, wrapStep(ErrGeneration, err)
	}
	return queries, nil
}

// escalate is the failure-path terminal transition: any collaborator error
// lands here with a reason naming the failing stage.
func (c *Controller) escalate(ctx context.Context, st *State, reason string, logger *slog.Logger) (*Result, error) {
	st.EscalationReason = reason
	c.transition(ctx, st, StageEscalated)
	return c.finishEscalated(ctx, st, logger)
}

func (c *Controller) finishEscalated(ctx context.Context, st *State, logger *slog.Logger) (*Result, error) {
	st.Escalated = true
	record := buildEscalationRecord(st)

	if c.log != nil {
		if err := c.log.Append(ctx, record); err != nil {
			// The run still terminates as escalated; losing the audit
			// record is logged, not fatal to the caller.
			logger.Error("escalation log append failed", "error", err)
		}
	}

	logger.Warn("run escalated",
		"reason", st.EscalationReason,
		"drafts", len(st.DraftHistory),
		"reviews", len(st.ReviewHistory),
		"retries", st.RetryCount,
	)
	return &Result{
		Type:     ResultEscalated,
		Response: EscalationMessage,
		Metadata: c.metadata(st),
		Record:   &record,
		State:    st,
	}, nil
}

// buildEscalationRecord converts a terminal state into its audit record.
// Pure with respect to the state; the durable append happens in the caller.
func buildEscalationRecord(st *State) escalation.Record {
	feedback := make([]string, 0, len(st.ReviewHistory))
	for _, review := range st.ReviewHistory {
		feedback = append(feedback, review.Feedback)
	}
	drafts := make([]string, len(st.DraftHistory))
	copy(drafts, st.DraftHistory)

	return escalation.Record{
		Timestamp:        time.Now().UTC(),
		TicketID:         st.Ticket.ID,
		Subject:          st.Ticket.Subject,
		Description:      st.Ticket.Description,
		Category:         st.Category,
		Confidence:       st.Confidence,
		NumDrafts:        len(st.DraftHistory),
		NumReviews:       len(st.ReviewHistory),
		FinalReviewScore: st.FinalReviewScore(),
		Reason:           st.EscalationReason,
		FailedDrafts:     drafts,
		ReviewerFeedback: feedback,
	}
}

func (c *Controller) metadata(st *State) Metadata {
	return Metadata{
		Category:         st.Category,
		Confidence:       st.Confidence,
		NumDrafts:        len(st.DraftHistory),
		NumReviews:       len(st.ReviewHistory),
		FinalReviewScore: st.FinalReviewScore(),
		ProcessingTime:   time.Since(st.StartedAt),
	}
}

func (c *Controller) transition(ctx context.Context, st *State, next Stage) {
	st.Stage = next
	if c.observer == nil {
		return
	}
	c.observer.OnEvent(ctx, Event{
		TicketID:  st.Ticket.ID,
		Stage:     next,
		Timestamp: time.Now().UTC(),
	})
}

func (c *Controller) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.StepTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.cfg.StepTimeout)
}

func wrapStep(stage error, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: timeout", stage)
	}
	return fmt.Errorf("%w: %v", stage, err)
}

func failureReason(stage Stage, err error) string {
	name := map[Stage]string{
		StageClassifying: "classifier",
		StageRetrieving:  "retriever",
		StageDrafting:    "drafter",
		StageReviewing:   "reviewer",
		StageRefining:    "query refiner",
	}[stage]
	if name == "" {
		name = string(stage)
	}
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "timeout") {
		return fmt.Sprintf("%s timeout", name)
	}
	return fmt.Sprintf("%s failure: %v", name, err)
}

func trimForLog(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 || len([]rune(text)) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + "..."
}
