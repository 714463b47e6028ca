package message

import "testing"

func TestNewMessage(t *testing.T) {
	msg := NewMessage(RoleUser, "my invoice is wrong")
	if msg.Role != RoleUser {
		t.Fatalf("expected role %q, got %q", RoleUser, msg.Role)
	}
	if msg.Content != "my invoice is wrong" {
		t.Fatalf("unexpected content: %q", msg.Content)
	}
	if msg.ID == "" {
		t.Fatal("expected non-empty message ID")
	}
	if msg.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be set")
	}
}

func TestCloneIsDeep(t *testing.T) {
	msg := NewMessage(RoleAssistant, "draft reply")
	msg.Metadata["category"] = "billing"

	cloned := Clone(msg)
	cloned.Metadata["category"] = "technical"
	cloned.Content = "changed"

	if msg.Metadata["category"] != "billing" {
		t.Fatalf("clone mutated original metadata: %v", msg.Metadata)
	}
	if msg.Content != "draft reply" {
		t.Fatalf("clone mutated original content: %q", msg.Content)
	}
}

func TestCloneNil(t *testing.T) {
	if Clone(nil) != nil {
		t.Fatal("cloning nil should return nil")
	}
	if CloneMessages(nil) != nil {
		t.Fatal("cloning empty slice should return nil")
	}
}
