package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sweetpotato0/ticketpilot/escalation"
	"github.com/sweetpotato0/ticketpilot/kb"
	"github.com/sweetpotato0/ticketpilot/llm"
	"github.com/sweetpotato0/ticketpilot/pkg/logging"
	"github.com/sweetpotato0/ticketpilot/workflow"
)

// Pipeline bundles the LLM collaborators, the knowledge base and the workflow
// controller behind a single entry point: submit a ticket, get a terminal result.
type Pipeline struct {
	controller *workflow.Controller
	index      *kb.Index
	log        escalation.Log
	logger     *slog.Logger
}

// clients carries optional per-role model overrides. Unset roles fall back to
// the shared client passed to New.
type clients struct {
	classifier llm.Client
	drafter    llm.Client
	reviewer   llm.Client
	refiner    llm.Client
}

// pipelineConfig extends Config with wiring that is not a model knob.
type pipelineConfig struct {
	escalationLog escalation.Log
	observer      workflow.Observer
	maxRetries    int
	stepTimeout   time.Duration
	clients       clients
}

// WithEscalationLog sets the durable escalation log the controller appends to.
func WithEscalationLog(log escalation.Log) Option {
	return func(cfg *Config) { cfg.wiring.escalationLog = log }
}

// WithObserver registers a progress event sink on the controller.
func WithObserver(obs workflow.Observer) Option {
	return func(cfg *Config) { cfg.wiring.observer = obs }
}

// WithMaxRetries bounds the refine/retrieve/draft/review loop.
func WithMaxRetries(n int) Option {
	return func(cfg *Config) {
		if n >= 0 {
			cfg.wiring.maxRetries = n
		}
	}
}

// WithStepTimeout bounds each collaborator call.
func WithStepTimeout(d time.Duration) Option {
	return func(cfg *Config) {
		if d > 0 {
			cfg.wiring.stepTimeout = d
		}
	}
}

// WithClassifierClient overrides the model used for classification.
func WithClassifierClient(c llm.Client) Option {
	return func(cfg *Config) { cfg.wiring.clients.classifier = c }
}

// WithDrafterClient overrides the model used for drafting.
func WithDrafterClient(c llm.Client) Option {
	return func(cfg *Config) { cfg.wiring.clients.drafter = c }
}

// WithReviewerClient overrides the model used for review.
func WithReviewerClient(c llm.Client) Option {
	return func(cfg *Config) { cfg.wiring.clients.reviewer = c }
}

// WithRefinerClient overrides the model used for query refinement.
func WithRefinerClient(c llm.Client) Option {
	return func(cfg *Config) { cfg.wiring.clients.refiner = c }
}

// New wires a complete ticket pipeline around a shared LLM client and a
// knowledge base index. Per-role clients can be substituted via options; when
// a role has its own client the role temperature from Config is applied to it.
func New(client llm.Client, index *kb.Index, opts ...Option) (*Pipeline, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if index == nil {
		return nil, fmt.Errorf("knowledge base index is required")
	}

	cfg := applyOptions(nil, opts)
	wiring := cfg.wiring

	pick := func(override llm.Client, temperature float64) llm.Client {
		if override == nil {
			return client
		}
		override.SetTemperature(temperature)
		return override
	}

	classifier, err := NewClassifier(pick(wiring.clients.classifier, cfg.ClassifierTemperature))
	if err != nil {
		return nil, err
	}
	retriever, err := NewRetriever(index, cfg)
	if err != nil {
		return nil, err
	}
	drafter, err := NewDrafter(pick(wiring.clients.drafter, cfg.DrafterTemperature))
	if err != nil {
		return nil, err
	}
	reviewer, err := NewReviewer(pick(wiring.clients.reviewer, cfg.ReviewerTemperature), cfg)
	if err != nil {
		return nil, err
	}
	refiner, err := NewQueryRefiner(pick(wiring.clients.refiner, cfg.RefinerTemperature), cfg)
	if err != nil {
		return nil, err
	}

	ctrlOpts := []workflow.ControllerOption{}
	if wiring.escalationLog != nil {
		ctrlOpts = append(ctrlOpts, workflow.WithEscalationLog(wiring.escalationLog))
	}
	if wiring.observer != nil {
		ctrlOpts = append(ctrlOpts, workflow.WithObserver(wiring.observer))
	}
	ctrlCfg := workflow.DefaultConfig()
	if wiring.maxRetries > 0 || wiring.stepTimeout > 0 {
		if wiring.maxRetries > 0 {
			ctrlCfg.MaxRetries = wiring.maxRetries
		}
		if wiring.stepTimeout > 0 {
			ctrlCfg.StepTimeout = wiring.stepTimeout
		}
		ctrlOpts = append(ctrlOpts, workflow.WithConfig(ctrlCfg))
	}

	controller, err := workflow.NewController(classifier, retriever, drafter, reviewer, refiner, ctrlOpts...)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		controller: controller,
		index:      index,
		log:        wiring.escalationLog,
		logger:     logging.WithComponent("pipeline"),
	}, nil
}

// Submit validates the raw ticket fields and drives it through the workflow.
// An empty id lets intake assign one.
func (p *Pipeline) Submit(ctx context.Context, id, subject, description string) (*workflow.Result, error) {
	ticket, err := workflow.NewTicket(id, subject, description)
	if err != nil {
		return nil, err
	}
	p.logger.Info("ticket accepted", "ticket_id", ticket.ID)
	return p.controller.Run(ctx, ticket)
}

// Process drives an already validated ticket through the workflow.
func (p *Pipeline) Process(ctx context.Context, ticket *workflow.Ticket) (*workflow.Result, error) {
	return p.controller.Run(ctx, ticket)
}

// IndexDocuments ingests knowledge base documents for later retrieval.
func (p *Pipeline) IndexDocuments(ctx context.Context, docs ...kb.Document) error {
	return p.index.IndexDocuments(ctx, docs...)
}

// Escalations lists the escalation log, oldest first. Returns an empty slice
// when no log was configured.
func (p *Pipeline) Escalations(ctx context.Context) ([]escalation.Record, error) {
	if p.log == nil {
		return []escalation.Record{}, nil
	}
	return p.log.List(ctx)
}
