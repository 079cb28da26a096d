package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := New(CategoryEnvironment, CodeNoSelection, "no exercise selected")
	if got := err.Error(); got != "[ENVIRONMENT:NO_SELECTION] no exercise selected" {
		t.Fatalf("unexpected message: %q", got)
	}

	cause := errors.New("disk full")
	wrapped := Persistence("failed to save rewards", cause)
	if got := wrapped.Error(); got != "[PERSISTENCE:WRITE_FAILED] failed to save rewards: disk full" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestIsMatchesCategoryAndCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", Persistence("failed", errors.New("boom")))
	if !errors.Is(err, New(CategoryPersistence, CodeWriteFailed, "")) {
		t.Fatalf("expected errors.Is to match on category and code")
	}
	if errors.Is(err, New(CategoryPersistence, CodeReadFailed, "")) {
		t.Fatalf("did not expect a different code to match")
	}
}

func TestUnwrapReachesCause(t *testing.T) {
	cause := errors.New("root cause")
	err := Content(CodeSetupFailed, "setup failed", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}
}

func TestCategoryAndCodeOf(t *testing.T) {
	err := fmt.Errorf("ctx: %w", Validation("email is required"))
	if CategoryOf(err) != CategoryValidation {
		t.Fatalf("expected validation category, got %q", CategoryOf(err))
	}
	if CodeOf(err) != CodeInvalidInput {
		t.Fatalf("expected invalid input code, got %q", CodeOf(err))
	}
	if CategoryOf(errors.New("plain")) != "" {
		t.Fatalf("expected empty category for plain errors")
	}
}
