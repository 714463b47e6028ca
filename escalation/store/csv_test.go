package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sweetpotato0/ticketpilot/escalation"
)

func testRecord(ticketID string, ts time.Time) escalation.Record {
	return escalation.Record{
		Timestamp:        ts,
		TicketID:         ticketID,
		Subject:          "Cannot log in",
		Description:      "Password reset email never arrives",
		Category:         "technical",
		Confidence:       0.95,
		NumDrafts:        3,
		NumReviews:       3,
		FinalReviewScore: 0.4,
		Reason:           "max retries exceeded",
		FailedDrafts:     []string{"draft one", "draft two", "draft three"},
		ReviewerFeedback: []string{"too vague", "missing steps", "still unclear"},
	}
}

func TestCSVLogAppendAndList(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "escalations.csv")
	log, err := NewCSVLog(path)
	if err != nil {
		t.Fatalf("NewCSVLog error: %v", err)
	}

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	// Append out of timestamp order to exercise sorting.
	if err := log.Append(ctx, testRecord("TCK-2", base.Add(time.Hour))); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if err := log.Append(ctx, testRecord("TCK-1", base)); err != nil {
		t.Fatalf("Append error: %v", err)
	}

	records, err := log.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].TicketID != "TCK-1" || records[1].TicketID != "TCK-2" {
		t.Fatalf("expected timestamp-sorted records, got %s, %s", records[0].TicketID, records[1].TicketID)
	}

	got := records[0]
	if got.Category != "technical" || got.Confidence != 0.95 {
		t.Fatalf("unexpected classification fields: %+v", got)
	}
	if got.NumDrafts != 3 || got.NumReviews != 3 || got.FinalReviewScore != 0.4 {
		t.Fatalf("unexpected counters: %+v", got)
	}
	if len(got.FailedDrafts) != 3 || got.FailedDrafts[0] != "draft one" {
		t.Fatalf("unexpected failed drafts: %v", got.FailedDrafts)
	}
	if len(got.ReviewerFeedback) != 3 {
		t.Fatalf("unexpected reviewer feedback: %v", got.ReviewerFeedback)
	}
}

func TestCSVLogTruncatesLongSnippets(t *testing.T) {
	ctx := context.Background()
	log, err := NewCSVLog(filepath.Join(t.TempDir(), "escalations.csv"))
	if err != nil {
		t.Fatalf("NewCSVLog error: %v", err)
	}

	rec := testRecord("TCK-1", time.Now().UTC())
	rec.FailedDrafts = []string{strings.Repeat("x", 500)}
	if err := log.Append(ctx, rec); err != nil {
		t.Fatalf("Append error: %v", err)
	}

	records, err := log.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(records[0].FailedDrafts) != 1 {
		t.Fatalf("expected 1 draft snippet, got %d", len(records[0].FailedDrafts))
	}
	if got := records[0].FailedDrafts[0]; len(got) != 103 || !strings.HasSuffix(got, "...") {
		t.Fatalf("expected 100-char truncated snippet, got %d chars", len(got))
	}
}

func TestCSVLogEmpty(t *testing.T) {
	log, err := NewCSVLog(filepath.Join(t.TempDir(), "escalations.csv"))
	if err != nil {
		t.Fatalf("NewCSVLog error: %v", err)
	}
	records, err := log.List(context.Background())
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records from a fresh log, got %d", len(records))
	}
}

func TestCSVLogConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	log, err := NewCSVLog(filepath.Join(t.TempDir(), "escalations.csv"))
	if err != nil {
		t.Fatalf("NewCSVLog error: %v", err)
	}

	const writers = 20
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			rec := testRecord(fmt.Sprintf("TCK-%d", i), time.Now().UTC())
			if err := log.Append(ctx, rec); err != nil {
				t.Errorf("Append error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	records, err := log.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(records) != writers {
		t.Fatalf("expected %d intact records, got %d", writers, len(records))
	}
	for _, rec := range records {
		if rec.Subject != "Cannot log in" {
			t.Fatalf("record corrupted under concurrency: %+v", rec)
		}
	}
}
