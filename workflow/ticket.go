package workflow

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	minSubjectLen     = 5
	maxSubjectLen     = 200
	minDescriptionLen = 10
	maxDescriptionLen = 5000
)

var (
	scriptTagPattern = regexp.MustCompile(`(?i)<\s*script`)
	jsSchemePattern  = regexp.MustCompile(`(?i)javascript\s*:`)
	spaceRunPattern  = regexp.MustCompile(`\s+`)
)

// Ticket is an immutable user-submitted support request.
type Ticket struct {
	ID          string    `json:"id"`
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// NewTicket validates intake input and builds a Ticket. When id is empty a
// server-side UUID is assigned; client-supplied counters are not trusted for
// global uniqueness.
func NewTicket(id, subject, description string) (*Ticket, error) {
	subject = normalize(subject)
	description = normalize(description)

	if err := validateField("subject", subject, minSubjectLen, maxSubjectLen); err != nil {
		return nil, err
	}
	if err := validateField("description", description, minDescriptionLen, maxDescriptionLen); err != nil {
		return nil, err
	}

	if id == "" {
		id = uuid.NewString()
	}

	return &Ticket{
		ID:          id,
		Subject:     subject,
		Description: description,
		SubmittedAt: time.Now().UTC(),
	}, nil
}

func validateField(name, value string, min, max int) error {
	if value == "" {
		return fmt.Errorf("%w: %s is empty", ErrInvalidTicket, name)
	}
	if len(value) < min {
		return fmt.Errorf("%w: %s must be at least %d characters", ErrInvalidTicket, name, min)
	}
	if len(value) > max {
		return fmt.Errorf("%w: %s must be at most %d characters", ErrInvalidTicket, name, max)
	}
	if scriptTagPattern.MatchString(value) || jsSchemePattern.MatchString(value) {
		return fmt.Errorf("%w: %s contains disallowed content", ErrInvalidTicket, name)
	}
	return nil
}

func normalize(s string) string {
	return spaceRunPattern.ReplaceAllString(strings.TrimSpace(s), " ")
}
