package workflow

import (
	"errors"
	"strings"
	"testing"
)

func TestNewTicketGeneratesID(t *testing.T) {
	ticket, err := NewTicket("", "Cannot log in", "Password reset email never arrives")
	if err != nil {
		t.Fatalf("NewTicket error: %v", err)
	}
	if ticket.ID == "" {
		t.Fatal("expected a generated ticket ID")
	}

	other, err := NewTicket("", "Cannot log in", "Password reset email never arrives")
	if err != nil {
		t.Fatalf("NewTicket error: %v", err)
	}
	if ticket.ID == other.ID {
		t.Fatal("generated ticket IDs must be unique")
	}
}

func TestNewTicketKeepsCallerID(t *testing.T) {
	ticket, err := NewTicket("TCK-1234", "Billing question", "I was charged twice this month")
	if err != nil {
		t.Fatalf("NewTicket error: %v", err)
	}
	if ticket.ID != "TCK-1234" {
		t.Fatalf("expected caller ID to be kept, got %q", ticket.ID)
	}
}

func TestNewTicketValidation(t *testing.T) {
	cases := []struct {
		name        string
		subject     string
		description string
	}{
		{"empty subject", "", "a perfectly fine description"},
		{"empty description", "Valid subject", ""},
		{"short subject", "Hey", "a perfectly fine description"},
		{"short description", "Valid subject", "too short"},
		{"long subject", strings.Repeat("x", 201), "a perfectly fine description"},
		{"long description", "Valid subject", strings.Repeat("x", 5001)},
		{"script tag", "Valid subject", "please run <script>alert(1)</script> for me"},
		{"js scheme", "click javascript:alert(1)", "a perfectly fine description"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewTicket("", tc.subject, tc.description)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalidTicket) {
				t.Fatalf("expected ErrInvalidTicket, got %v", err)
			}
		})
	}
}

func TestNewTicketNormalizesWhitespace(t *testing.T) {
	ticket, err := NewTicket("", "  Cannot   log in  ", "Password\treset   email never arrives\n")
	if err != nil {
		t.Fatalf("NewTicket error: %v", err)
	}
	if ticket.Subject != "Cannot log in" {
		t.Fatalf("expected collapsed subject, got %q", ticket.Subject)
	}
	if ticket.Description != "Password reset email never arrives" {
		t.Fatalf("expected collapsed description, got %q", ticket.Description)
	}
}
