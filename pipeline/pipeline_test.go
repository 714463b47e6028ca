package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/sweetpotato0/ticketpilot/contrib/vector/inmemory"
	"github.com/sweetpotato0/ticketpilot/escalation"
	"github.com/sweetpotato0/ticketpilot/kb"
	"github.com/sweetpotato0/ticketpilot/message"
	"github.com/sweetpotato0/ticketpilot/workflow"
)

// stubLLM replays scripted responses, repeating the last one when exhausted.
type stubLLM struct {
	mu        sync.Mutex
	responses []string
	calls     int
	lastMsgs  []*message.Message
	err       error
}

func (s *stubLLM) Generate(ctx context.Context, msgs []*message.Message) (*message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastMsgs = message.CloneMessages(msgs)
	if s.err != nil {
		return nil, s.err
	}
	idx := s.calls - 1
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return message.NewMessage(message.RoleAssistant, s.responses[idx]), nil
}

func (s *stubLLM) SetTemperature(temperature float64) {}
func (s *stubLLM) SetMaxTokens(maxTokens int64)       {}
func (s *stubLLM) SetModel(model string)              {}

// keywordEmbedder maps text onto a small keyword space so similarity search is
// deterministic without a real embedding model.
type keywordEmbedder struct{}

var keywordSpace = []string{"billing", "refund", "password", "outage"}

func (keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	vec := make([]float32, len(keywordSpace))
	for i, kw := range keywordSpace {
		vec[i] = float32(strings.Count(lower, kw))
	}
	return vec, nil
}

func (k keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := k.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (keywordEmbedder) Dimension() int { return len(keywordSpace) }

type wholeDocSplitter struct{}

func (wholeDocSplitter) Chunk(ctx context.Context, doc kb.Document) ([]kb.Chunk, error) {
	return []kb.Chunk{{
		ID:         kb.NextChunkID(doc.ID),
		DocumentID: doc.ID,
		Content:    doc.Content,
		Metadata:   doc.Metadata,
	}}, nil
}

type memoryLog struct {
	mu      sync.Mutex
	records []escalation.Record
}

func (l *memoryLog) Append(ctx context.Context, record escalation.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, record)
	return nil
}

func (l *memoryLog) List(ctx context.Context) ([]escalation.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]escalation.Record, len(l.records))
	copy(out, l.records)
	return out, nil
}

func testIndex(t *testing.T) *kb.Index {
	t.Helper()
	index, err := kb.NewIndex(inmemory.NewInMemoryVectorStore(), keywordEmbedder{}, wholeDocSplitter{})
	if err != nil {
		t.Fatalf("NewIndex error: %v", err)
	}
	err = index.IndexDocuments(context.Background(),
		kb.Document{
			ID:       "kb-refunds",
			Content:  "Refund policy: billing refund requests are processed within 5 business days.",
			Metadata: map[string]any{"category": "billing"},
		},
		kb.Document{
			ID:       "kb-password",
			Content:  "Password reset: use the forgot password link; reset emails can take 10 minutes.",
			Metadata: map[string]any{"category": "technical"},
		},
	)
	if err != nil {
		t.Fatalf("IndexDocuments error: %v", err)
	}
	return index
}

func testTicket(t *testing.T) *workflow.Ticket {
	t.Helper()
	ticket, err := workflow.NewTicket("TCK-1", "Refund for double billing",
		"I was charged twice this month and need a billing refund.")
	if err != nil {
		t.Fatalf("NewTicket error: %v", err)
	}
	return ticket
}

func TestClassifierParsesFencedVerdict(t *testing.T) {
	stub := &stubLLM{responses: []string{
		"```json\n{\"category\": \"Billing\", \"confidence\": 0.92, \"reasoning\": \"double charge\"}\n```",
	}}
	classifier, err := NewClassifier(stub)
	if err != nil {
		t.Fatalf("NewClassifier error: %v", err)
	}

	cls, err := classifier.Classify(context.Background(), testTicket(t))
	if err != nil {
		t.Fatalf("Classify error: %v", err)
	}
	if cls.Category != CategoryBilling {
		t.Fatalf("expected billing, got %q", cls.Category)
	}
	if cls.Confidence != 0.92 {
		t.Fatalf("expected confidence 0.92, got %v", cls.Confidence)
	}
}

func TestClassifierUnknownCategoryFallsBackToGeneral(t *testing.T) {
	stub := &stubLLM{responses: []string{`{"category": "hardware", "confidence": 0.8}`}}
	classifier, _ := NewClassifier(stub)

	cls, err := classifier.Classify(context.Background(), testTicket(t))
	if err != nil {
		t.Fatalf("Classify error: %v", err)
	}
	if cls.Category != CategoryGeneral {
		t.Fatalf("expected general fallback, got %q", cls.Category)
	}
}

func TestClassifierMalformedOutputErrors(t *testing.T) {
	stub := &stubLLM{responses: []string{"I think this is about billing."}}
	classifier, _ := NewClassifier(stub)

	if _, err := classifier.Classify(context.Background(), testTicket(t)); err == nil {
		t.Fatal("expected error for non-JSON classifier output")
	}
}

func TestReviewerThresholdGatesApproval(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     workflow.Decision
	}{
		{
			name:     "approved above threshold",
			response: `{"approved": true, "score": 0.85, "feedback": ""}`,
			want:     workflow.DecisionApproved,
		},
		{
			name:     "approved flag but below threshold",
			response: `{"approved": true, "score": 0.6, "feedback": "thin answer"}`,
			want:     workflow.DecisionRejected,
		},
		{
			name:     "rejected outright",
			response: `{"approved": false, "score": 0.3, "feedback": "wrong policy", "issues": ["cites old refund window"]}`,
			want:     workflow.DecisionRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reviewer, err := NewReviewer(&stubLLM{responses: []string{tt.response}}, nil)
			if err != nil {
				t.Fatalf("NewReviewer error: %v", err)
			}
			review, err := reviewer.Review(context.Background(), testTicket(t), "draft text")
			if err != nil {
				t.Fatalf("Review error: %v", err)
			}
			if review.Decision != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, review.Decision)
			}
			if review.Decision == workflow.DecisionRejected && review.Feedback == "" {
				t.Fatal("rejected review must carry feedback")
			}
		})
	}
}

func TestReviewerMergesIssuesIntoFeedback(t *testing.T) {
	reviewer, _ := NewReviewer(&stubLLM{responses: []string{
		`{"approved": false, "score": 0.4, "feedback": "too vague", "issues": ["no steps", "wrong tone"]}`,
	}}, nil)

	review, err := reviewer.Review(context.Background(), testTicket(t), "draft text")
	if err != nil {
		t.Fatalf("Review error: %v", err)
	}
	if !strings.Contains(review.Feedback, "too vague") || !strings.Contains(review.Feedback, "no steps") {
		t.Fatalf("expected merged feedback, got %q", review.Feedback)
	}
}

func TestRefinerDedupesAndCapsQueries(t *testing.T) {
	refiner, err := NewQueryRefiner(&stubLLM{responses: []string{
		`{"refined_queries": ["refund window", "Refund Window", "double charge", " ", "chargeback", "billing dispute", "invoice correction", "proration"]}`,
	}}, nil)
	if err != nil {
		t.Fatalf("NewQueryRefiner error: %v", err)
	}

	queries, err := refiner.Refine(context.Background(), testTicket(t), "missing refund window", []string{"refund"})
	if err != nil {
		t.Fatalf("Refine error: %v", err)
	}
	if len(queries) != 5 {
		t.Fatalf("expected 5 queries after dedupe and cap, got %d: %v", len(queries), queries)
	}
	if queries[0] != "refund window" || queries[1] != "double charge" {
		t.Fatalf("unexpected query order: %v", queries)
	}
}

func TestRefinerEmptyOutputErrors(t *testing.T) {
	refiner, _ := NewQueryRefiner(&stubLLM{responses: []string{`{"refined_queries": []}`}}, nil)
	if _, err := refiner.Refine(context.Background(), testTicket(t), "feedback", nil); err == nil {
		t.Fatal("expected error when refiner yields no queries")
	}
}

func TestDrafterSwitchesToRedraftPrompt(t *testing.T) {
	stub := &stubLLM{responses: []string{"Here is the improved reply."}}
	drafter, err := NewDrafter(stub)
	if err != nil {
		t.Fatalf("NewDrafter error: %v", err)
	}

	docs := []workflow.ContextDoc{{Text: "Refunds take 5 business days.", Score: 0.9}}
	draft, err := drafter.Draft(context.Background(), testTicket(t), docs, "cite the refund window")
	if err != nil {
		t.Fatalf("Draft error: %v", err)
	}
	if draft != "Here is the improved reply." {
		t.Fatalf("unexpected draft: %q", draft)
	}

	user := stub.lastMsgs[len(stub.lastMsgs)-1].Content
	if !strings.Contains(user, "cite the refund window") {
		t.Fatal("redraft prompt must include reviewer feedback")
	}
	if !strings.Contains(user, "Refunds take 5 business days.") {
		t.Fatal("prompt must include retrieved excerpts")
	}
}

func TestDrafterHandlesEmptyContext(t *testing.T) {
	stub := &stubLLM{responses: []string{"Reply without context."}}
	drafter, _ := NewDrafter(stub)

	if _, err := drafter.Draft(context.Background(), testTicket(t), nil, ""); err != nil {
		t.Fatalf("Draft error: %v", err)
	}
	user := stub.lastMsgs[len(stub.lastMsgs)-1].Content
	if !strings.Contains(user, noContextPlaceholder) {
		t.Fatal("prompt must mark missing excerpts explicitly")
	}
}

func TestRetrieverPrefersMatchingCategory(t *testing.T) {
	retriever, err := NewRetriever(testIndex(t), nil)
	if err != nil {
		t.Fatalf("NewRetriever error: %v", err)
	}

	docs, err := retriever.Retrieve(context.Background(), "billing refund password", "billing")
	if err != nil {
		t.Fatalf("Retrieve error: %v", err)
	}
	if len(docs) == 0 {
		t.Fatal("expected retrieval hits")
	}
	if !strings.Contains(docs[0].Text, "Refund policy") {
		t.Fatalf("expected billing doc ranked first, got %q", docs[0].Text)
	}
}

func TestPipelineApprovesFirstDraft(t *testing.T) {
	obsLog := &memoryLog{}
	p, err := New(
		&stubLLM{responses: []string{"unused shared client"}},
		testIndex(t),
		WithEscalationLog(obsLog),
		WithClassifierClient(&stubLLM{responses: []string{`{"category": "billing", "confidence": 0.9}`}}),
		WithDrafterClient(&stubLLM{responses: []string{"Your refund will arrive within 5 business days."}}),
		WithReviewerClient(&stubLLM{responses: []string{`{"approved": true, "score": 0.9, "feedback": ""}`}}),
		WithRefinerClient(&stubLLM{responses: []string{`{"refined_queries": ["unused"]}`}}),
	)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	result, err := p.Submit(context.Background(), "TCK-1", "Refund for double billing",
		"I was charged twice this month and need a billing refund.")
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if result.Type != workflow.ResultFinal {
		t.Fatalf("expected final result, got %s", result.Type)
	}
	if result.Response != "Your refund will arrive within 5 business days." {
		t.Fatalf("unexpected response: %q", result.Response)
	}
	if result.Metadata.Category != "billing" || result.Metadata.NumDrafts != 1 {
		t.Fatalf("unexpected metadata: %+v", result.Metadata)
	}
	if len(obsLog.records) != 0 {
		t.Fatalf("approved run must not write escalation records, got %d", len(obsLog.records))
	}
}

func TestPipelineEscalatesWhenReviewerNeverApproves(t *testing.T) {
	obsLog := &memoryLog{}
	reviewer := &stubLLM{responses: []string{
		`{"approved": false, "score": 0.4, "feedback": "missing refund window"}`,
	}}
	p, err := New(
		&stubLLM{responses: []string{"unused shared client"}},
		testIndex(t),
		WithEscalationLog(obsLog),
		WithMaxRetries(2),
		WithClassifierClient(&stubLLM{responses: []string{`{"category": "billing", "confidence": 0.9}`}}),
		WithDrafterClient(&stubLLM{responses: []string{"Draft reply."}}),
		WithReviewerClient(reviewer),
		WithRefinerClient(&stubLLM{responses: []string{`{"refined_queries": ["refund window", "chargeback"]}`}}),
	)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	result, err := p.Submit(context.Background(), "TCK-2", "Refund for double billing",
		"I was charged twice this month and need a billing refund.")
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if result.Type != workflow.ResultEscalated {
		t.Fatalf("expected escalated result, got %s", result.Type)
	}
	if result.Response != workflow.EscalationMessage {
		t.Fatalf("unexpected escalation response: %q", result.Response)
	}
	if result.Record == nil || result.Record.Reason != workflow.ReasonMaxRetries {
		t.Fatalf("expected max-retries record, got %+v", result.Record)
	}
	if result.Metadata.NumReviews != 3 || result.Metadata.NumDrafts != 3 {
		t.Fatalf("expected 3 review cycles, got %+v", result.Metadata)
	}
	if reviewer.calls != 3 {
		t.Fatalf("expected 3 reviewer calls, got %d", reviewer.calls)
	}

	records, err := p.Escalations(context.Background())
	if err != nil {
		t.Fatalf("Escalations error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 persisted escalation, got %d", len(records))
	}
}

func TestPipelineRejectsInvalidTicket(t *testing.T) {
	p, err := New(&stubLLM{responses: []string{"unused"}}, testIndex(t))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if _, err := p.Submit(context.Background(), "", "hi", "short"); err == nil {
		t.Fatal("expected validation error for malformed ticket")
	}
}
