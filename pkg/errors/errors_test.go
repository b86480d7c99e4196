package chat_errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationErrorMatchesInvalidInput(t *testing.T) {
	err := fmt.Errorf("send: %w", NewValidationError("text", "required").Add("receiver_id", "invalid id"))

	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput in chain, got %v", err)
	}

	fields := FieldsOf(err)
	if len(fields) != 2 {
		t.Fatalf("expected 2 field details, got %v", fields)
	}
	if fields["text"] != "required" {
		t.Fatalf("unexpected text detail: %q", fields["text"])
	}

	want := "invalid input: receiver_id: invalid id, text: required"
	if got := errors.Unwrap(err).Error(); got != want {
		t.Fatalf("message = %q, want %q", got, want)
	}
}

func TestFieldsOfPlainError(t *testing.T) {
	if FieldsOf(ErrNotFound) != nil {
		t.Fatalf("expected no fields for plain sentinel")
	}
}
