package config

import (
	"strings"
	"testing"
)

func TestValidatorAccumulatesErrors(t *testing.T) {
	v := NewValidator().
		RequireNonEmpty("name", "").
		RequirePositive("count", 0).
		ValidateFloatRange("threshold", 1.5, 0, 1)

	if !v.HasErrors() {
		t.Fatal("expected validation errors")
	}
	if len(v.Errors()) != 3 {
		t.Fatalf("expected 3 errors, got %d", len(v.Errors()))
	}
	err := v.Error()
	if err == nil {
		t.Fatal("expected combined error")
	}
	for _, field := range []string{"name", "count", "threshold"} {
		if !strings.Contains(err.Error(), field) {
			t.Fatalf("combined error missing field %q: %v", field, err)
		}
	}
}

func TestValidatorPassesValidInput(t *testing.T) {
	v := NewValidator().
		RequireNonEmpty("name", "ticketpilot").
		RequirePositive("count", 5).
		RequireNonNegative("retries", 0).
		ValidateOneOf("backend", "csv", "csv", "postgres").
		ValidatePort("port", 5432).
		ValidateFloatRange("threshold", 0.7, 0, 1)

	if v.HasErrors() {
		t.Fatalf("unexpected errors: %v", v.Error())
	}
	if err := v.Error(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestValidateOneOfRejectsUnknownValue(t *testing.T) {
	err := NewValidator().ValidateOneOf("backend", "sqlite", "csv", "postgres").Error()
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if !strings.Contains(err.Error(), "sqlite") {
		t.Fatalf("error should echo the rejected value: %v", err)
	}
}
