package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestExitCodeFollowsWrappedCode(t *testing.T) {
	base := New(CodeCancelled, "operation cancelled")
	wrapped := fmt.Errorf("invoke: %w", base)
	if got := ExitCode(wrapped); got != int(CodeCancelled) {
		t.Fatalf("expected exit code %d, got %d", CodeCancelled, got)
	}
	if !Is(wrapped, CodeCancelled) {
		t.Fatal("expected Is to find cancelled code through wrapping")
	}
	if Is(wrapped, CodeUsage) {
		t.Fatal("did not expect usage code")
	}
}

func TestExitCodeDefaults(t *testing.T) {
	if got := ExitCode(nil); got != 0 {
		t.Fatalf("expected 0 for nil error, got %d", got)
	}
	if got := ExitCode(errors.New("boom")); got != int(CodeInternal) {
		t.Fatalf("expected internal code for plain error, got %d", got)
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Wrap(CodeBackend, "call operation", errors.New("status 409"))
	if err.Error() != "call operation: status 409" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if TypeName(err.Code) != "backend_error" {
		t.Fatalf("unexpected type name %q", TypeName(err.Code))
	}
}
