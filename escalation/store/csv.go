package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sweetpotato0/ticketpilot/escalation"
)

var csvHeader = []string{
	"timestamp",
	"ticket_id",
	"subject",
	"description",
	"category",
	"classification_confidence",
	"num_drafts",
	"num_reviews",
	"final_review_score",
	"escalation_reason",
	"failed_drafts",
	"reviewer_feedback",
}

const snippetLimit = 100

// CSVLog is a file-backed escalation log. Appends are serialized by a mutex
// and each record is flushed as a whole row, so concurrent workflow runs
// never interleave partial records.
type CSVLog struct {
	mu   sync.Mutex
	path string
}

// NewCSVLog creates (or reopens) an escalation log at path.
func NewCSVLog(path string) (*CSVLog, error) {
	if path == "" {
		return nil, fmt.Errorf("csv log path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	return &CSVLog{path: path}, nil
}

// Append writes one escalation record as a single CSV row.
func (l *CSVLog) Append(ctx context.Context, record escalation.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, statErr := os.Stat(l.path)
	writeHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open escalation log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if err := w.Write(encodeRow(record)); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush record: %w", err)
	}
	return f.Sync()
}

// List reads back all records sorted by timestamp ascending.
func (l *CSVLog) List(ctx context.Context) ([]escalation.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []escalation.Record{}, nil
		}
		return nil, fmt.Errorf("open escalation log: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read escalation log: %w", err)
	}
	if len(rows) <= 1 {
		return []escalation.Record{}, nil
	}

	records := make([]escalation.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec, err := decodeRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records, nil
}

func encodeRow(record escalation.Record) []string {
	return []string{
		record.Timestamp.Format(time.RFC3339Nano),
		record.TicketID,
		record.Subject,
		record.Description,
		record.Category,
		strconv.FormatFloat(record.Confidence, 'f', -1, 64),
		strconv.Itoa(record.NumDrafts),
		strconv.Itoa(record.NumReviews),
		strconv.FormatFloat(record.FinalReviewScore, 'f', -1, 64),
		record.Reason,
		joinSnippets(record.FailedDrafts),
		joinSnippets(record.ReviewerFeedback),
	}
}

func decodeRow(row []string) (escalation.Record, error) {
	if len(row) != len(csvHeader) {
		return escalation.Record{}, fmt.Errorf("malformed escalation row: %d columns", len(row))
	}

	ts, err := time.Parse(time.RFC3339Nano, row[0])
	if err != nil {
		return escalation.Record{}, fmt.Errorf("parse timestamp %q: %w", row[0], err)
	}
	confidence, err := strconv.ParseFloat(row[5], 64)
	if err != nil {
		return escalation.Record{}, fmt.Errorf("parse confidence %q: %w", row[5], err)
	}
	numDrafts, err := strconv.Atoi(row[6])
	if err != nil {
		return escalation.Record{}, fmt.Errorf("parse num_drafts %q: %w", row[6], err)
	}
	numReviews, err := strconv.Atoi(row[7])
	if err != nil {
		return escalation.Record{}, fmt.Errorf("parse num_reviews %q: %w", row[7], err)
	}
	score, err := strconv.ParseFloat(row[8], 64)
	if err != nil {
		return escalation.Record{}, fmt.Errorf("parse final_review_score %q: %w", row[8], err)
	}

	return escalation.Record{
		Timestamp:        ts,
		TicketID:         row[1],
		Subject:          row[2],
		Description:      row[3],
		Category:         row[4],
		Confidence:       confidence,
		NumDrafts:        numDrafts,
		NumReviews:       numReviews,
		FinalReviewScore: score,
		Reason:           row[9],
		FailedDrafts:     splitSnippets(row[10]),
		ReviewerFeedback: splitSnippets(row[11]),
	}, nil
}

// joinSnippets truncates each entry and joins with " | ", matching the audit
// log format the support team already consumes.
func joinSnippets(items []string) string {
	parts := make([]string, len(items))
	for i, item := range items {
		if len(item) > snippetLimit {
			item = item[:snippetLimit] + "..."
		}
		parts[i] = item
	}
	return strings.Join(parts, " | ")
}

func splitSnippets(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, " | ")
}
