package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/sweetpotato0/ticketpilot/escalation"
)

type stubClassifier struct {
	category   string
	confidence float64
	err        error
}

func (s *stubClassifier) Classify(ctx context.Context, ticket *Ticket) (Classification, error) {
	if s.err != nil {
		return Classification{}, s.err
	}
	return Classification{Category: s.category, Confidence: s.confidence}, nil
}

type stubRetriever struct {
	docs  []ContextDoc
	err   error
	calls int
}

func (s *stubRetriever) Retrieve(ctx context.Context, query, category string) ([]ContextDoc, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.docs, nil
}

type stubDrafter struct {
	err   error
	calls int
}

func (s *stubDrafter) Draft(ctx context.Context, ticket *Ticket, docs []ContextDoc, priorFeedback string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return fmt.Sprintf("draft %d", s.calls), nil
}

// scriptedReviewer replays a fixed sequence of verdicts, repeating the last
// one when the script runs out.
type scriptedReviewer struct {
	reviews []Review
	err     error
	calls   int
}

func (s *scriptedReviewer) Review(ctx context.Context, ticket *Ticket, draft string) (Review, error) {
	if s.err != nil {
		return Review{}, s.err
	}
	idx := s.calls
	if idx >= len(s.reviews) {
		idx = len(s.reviews) - 1
	}
	s.calls++
	return s.reviews[idx], nil
}

type stubRefiner struct {
	queries []string
	err     error
	calls   int
}

func (s *stubRefiner) Refine(ctx context.Context, ticket *Ticket, feedback string, previousQueries []string) ([]string, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.queries, nil
}

type memoryLog struct {
	mu      sync.Mutex
	records []escalation.Record
}

func (m *memoryLog) Append(ctx context.Context, record escalation.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

func (m *memoryLog) List(ctx context.Context) ([]escalation.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]escalation.Record, len(m.records))
	copy(out, m.records)
	return out, nil
}

func testTicket(t *testing.T) *Ticket {
	t.Helper()
	ticket, err := NewTicket("", "Cannot log in", "Password reset email never arrives")
	if err != nil {
		t.Fatalf("NewTicket error: %v", err)
	}
	return ticket
}

func newTestController(t *testing.T, reviewer Reviewer, opts ...ControllerOption) (*Controller, *stubRetriever, *stubDrafter, *stubRefiner) {
	t.Helper()
	retriever := &stubRetriever{docs: []ContextDoc{{Text: "reset emails can land in spam", Score: 0.9}}}
	drafter := &stubDrafter{}
	refiner := &stubRefiner{queries: []string{"password reset email delivery"}}
	ctrl, err := NewController(
		&stubClassifier{category: "technical", confidence: 0.95},
		retriever, drafter, reviewer, refiner, opts...)
	if err != nil {
		t.Fatalf("NewController error: %v", err)
	}
	return ctrl, retriever, drafter, refiner
}

func TestFirstDraftApproved(t *testing.T) {
	reviewer := &scriptedReviewer{reviews: []Review{
		{Decision: DecisionApproved, Score: 0.9, Feedback: "good"},
	}}
	ctrl, _, _, refiner := newTestController(t, reviewer)

	res, err := ctrl.Run(context.Background(), testTicket(t))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if res.Type != ResultFinal {
		t.Fatalf("expected final result, got %s", res.Type)
	}
	st := res.State
	if len(st.DraftHistory) != 1 || len(st.ReviewHistory) != 1 {
		t.Fatalf("expected 1 draft and 1 review, got %d/%d", len(st.DraftHistory), len(st.ReviewHistory))
	}
	if res.Response != st.DraftHistory[0] {
		t.Fatalf("final response should equal the single draft")
	}
	if st.Escalated {
		t.Fatal("approved run must not be escalated")
	}
	if refiner.calls != 0 {
		t.Fatalf("refiner should not run on first-pass approval, got %d calls", refiner.calls)
	}
	if res.Metadata.Category != "technical" || res.Metadata.FinalReviewScore != 0.9 {
		t.Fatalf("unexpected metadata: %+v", res.Metadata)
	}
}

func TestRejectTwiceThenApprove(t *testing.T) {
	reviewer := &scriptedReviewer{reviews: []Review{
		{Decision: DecisionRejected, Score: 0.4, Feedback: "too vague"},
		{Decision: DecisionRejected, Score: 0.5, Feedback: "missing steps"},
		{Decision: DecisionApproved, Score: 0.85, Feedback: "good"},
	}}
	ctrl, _, _, _ := newTestController(t, reviewer, WithConfig(Config{MaxRetries: 2}))

	res, err := ctrl.Run(context.Background(), testTicket(t))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if res.Type != ResultFinal {
		t.Fatalf("expected final result, got %s", res.Type)
	}
	st := res.State
	if len(st.DraftHistory) != 3 || len(st.ReviewHistory) != 3 {
		t.Fatalf("expected 3 drafts and 3 reviews, got %d/%d", len(st.DraftHistory), len(st.ReviewHistory))
	}
	if st.RetryCount != 2 {
		t.Fatalf("expected retry_count 2, got %d", st.RetryCount)
	}
	if res.Response != st.DraftHistory[2] {
		t.Fatal("final response should be the third draft")
	}
}

func TestAlwaysRejectEscalatesAtMaxRetries(t *testing.T) {
	reviewer := &scriptedReviewer{reviews: []Review{
		{Decision: DecisionRejected, Score: 0.3, Feedback: "not acceptable"},
	}}
	log := &memoryLog{}
	ctrl, _, _, _ := newTestController(t, reviewer,
		WithConfig(Config{MaxRetries: 2}), WithEscalationLog(log))

	res, err := ctrl.Run(context.Background(), testTicket(t))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if res.Type != ResultEscalated {
		t.Fatalf("expected escalated result, got %s", res.Type)
	}
	st := res.State
	if st.EscalationReason != ReasonMaxRetries {
		t.Fatalf("expected reason %q, got %q", ReasonMaxRetries, st.EscalationReason)
	}
	if st.RetryCount != 2 {
		t.Fatalf("expected retry_count == max_retries (2), got %d", st.RetryCount)
	}
	if len(st.ReviewHistory) != 3 {
		t.Fatalf("expected max_retries+1 reviews, got %d", len(st.ReviewHistory))
	}
	if st.FinalResponse != "" {
		t.Fatal("escalated run must not carry a final response")
	}
	if res.Record == nil || res.Record.NumDrafts != 3 || len(res.Record.FailedDrafts) != 3 {
		t.Fatalf("unexpected escalation record: %+v", res.Record)
	}
	records, _ := log.List(context.Background())
	if len(records) != 1 {
		t.Fatalf("expected exactly one persisted record, got %d", len(records))
	}
	if res.Response != EscalationMessage {
		t.Fatalf("expected escalation customer message, got %q", res.Response)
	}
}

func TestEmptyRetrievalStillDrafts(t *testing.T) {
	reviewer := &scriptedReviewer{reviews: []Review{
		{Decision: DecisionApproved, Score: 0.8, Feedback: "fine"},
	}}
	ctrl, retriever, drafter, _ := newTestController(t, reviewer)
	retriever.docs = nil

	res, err := ctrl.Run(context.Background(), testTicket(t))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Type != ResultFinal {
		t.Fatalf("expected final result with empty context, got %s", res.Type)
	}
	if drafter.calls != 1 {
		t.Fatalf("expected drafting to proceed, got %d draft calls", drafter.calls)
	}
	if len(res.State.RetrievedContext) != 0 {
		t.Fatalf("expected empty retrieved context, got %d docs", len(res.State.RetrievedContext))
	}
}

func TestCollaboratorFailuresEscalateWithStageReason(t *testing.T) {
	boom := errors.New("boom")
	approve := []Review{{Decision: DecisionApproved, Score: 0.9}}
	reject := []Review{{Decision: DecisionRejected, Score: 0.2, Feedback: "redo"}}

	cases := []struct {
		name   string
		mutate func(*Controller)
		expect string
	}{
		{
			name:   "classifier",
			mutate: func(c *Controller) { c.classifier = &stubClassifier{err: boom} },
			expect: "classifier failure",
		},
		{
			name:   "retriever",
			mutate: func(c *Controller) { c.retriever = &stubRetriever{err: boom} },
			expect: "retriever failure",
		},
		{
			name:   "drafter",
			mutate: func(c *Controller) { c.drafter = &stubDrafter{err: boom} },
			expect: "drafter failure",
		},
		{
			name:   "reviewer",
			mutate: func(c *Controller) { c.reviewer = &scriptedReviewer{err: boom} },
			expect: "reviewer failure",
		},
		{
			name:   "refiner",
			mutate: func(c *Controller) { c.refiner = &stubRefiner{err: boom} },
			expect: "query refiner failure",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reviews := approve
			if tc.name == "refiner" {
				reviews = reject
			}
			ctrl, _, _, _ := newTestController(t, &scriptedReviewer{reviews: reviews})
			tc.mutate(ctrl)

			res, err := ctrl.Run(context.Background(), testTicket(t))
			if err != nil {
				t.Fatalf("Run error: %v", err)
			}
			if res.Type != ResultEscalated {
				t.Fatalf("expected escalated result, got %s", res.Type)
			}
			if !strings.Contains(res.State.EscalationReason, tc.expect) {
				t.Fatalf("expected reason naming %q, got %q", tc.expect, res.State.EscalationReason)
			}
			if !res.State.Stage.Terminal() {
				t.Fatal("run must end in a terminal stage")
			}
		})
	}
}

func TestObserverSeesStageSequence(t *testing.T) {
	reviewer := &scriptedReviewer{reviews: []Review{
		{Decision: DecisionRejected, Score: 0.4, Feedback: "expand"},
		{Decision: DecisionApproved, Score: 0.9, Feedback: "good"},
	}}

	var mu sync.Mutex
	var stages []Stage
	obs := ObserverFunc(func(ctx context.Context, ev Event) {
		mu.Lock()
		stages = append(stages, ev.Stage)
		mu.Unlock()
	})

	ctrl, _, _, _ := newTestController(t, reviewer, WithObserver(obs))
	if _, err := ctrl.Run(context.Background(), testTicket(t)); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	want := []Stage{
		StageIntake, StageClassifying, StageRetrieving, StageDrafting, StageReviewing,
		StageRefining, StageRetrieving, StageDrafting, StageReviewing, StageApproved,
	}
	if len(stages) != len(want) {
		t.Fatalf("expected %d events, got %d (%v)", len(want), len(stages), stages)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], stages[i])
		}
	}
}

func TestCancellationAbortsWithoutRecord(t *testing.T) {
	reviewer := &scriptedReviewer{reviews: []Review{
		{Decision: DecisionApproved, Score: 0.9},
	}}
	log := &memoryLog{}
	ctrl, _, _, _ := newTestController(t, reviewer, WithEscalationLog(log))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ctrl.Run(ctx, testTicket(t))
	if err == nil {
		t.Fatal("expected error from cancelled run")
	}
	records, _ := log.List(context.Background())
	if len(records) != 0 {
		t.Fatalf("cancelled run must not write escalation records, got %d", len(records))
	}
}

func TestRefinedQueriesReplacePrevious(t *testing.T) {
	reviewer := &scriptedReviewer{reviews: []Review{
		{Decision: DecisionRejected, Score: 0.4, Feedback: "look deeper"},
		{Decision: DecisionApproved, Score: 0.9},
	}}
	ctrl, retriever, _, refiner := newTestController(t, reviewer)
	refiner.queries = []string{"query one", "query two"}

	res, err := ctrl.Run(context.Background(), testTicket(t))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if got := res.State.Queries; len(got) != 2 || got[0] != "query one" {
		t.Fatalf("expected refined queries to replace originals, got %v", got)
	}
	// one initial retrieval plus one per refined query
	if retriever.calls != 3 {
		t.Fatalf("expected 3 retrieve calls, got %d", retriever.calls)
	}
}
