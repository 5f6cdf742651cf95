package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
)

func TestCodeMatchingThroughWrapLayers(t *testing.T) {
	base := New(CodeLimitExceeded, "daily cap exhausted")
	wrapped := fmt.Errorf("withdraw: %w", base)

	if !stdErrors.Is(wrapped, New(CodeLimitExceeded, "")) {
		t.Fatalf("expected wrapped error to match by code")
	}
	if stdErrors.Is(wrapped, New(CodeValidation, "")) {
		t.Fatalf("codes should not cross-match")
	}
	if got := CodeOf(wrapped); got != CodeLimitExceeded {
		t.Fatalf("CodeOf = %s, want %s", got, CodeLimitExceeded)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stdErrors.New("connection refused")
	err := Wrap(CodeExternalFailure, cause, "oracle read failed")

	if !stdErrors.Is(err, cause) {
		t.Fatalf("expected cause to survive unwrapping")
	}
	if err.Message() != "oracle read failed" {
		t.Fatalf("unexpected message %q", err.Message())
	}
}

func TestRegisteredDefaults(t *testing.T) {
	err := New(CodeExternalFailure, "")
	if err.Message() != "external call failed" {
		t.Fatalf("default message not applied: %q", err.Message())
	}
	if !err.ShouldAlert() {
		t.Fatalf("external failures should alert by default")
	}
	if !err.Retryable() {
		t.Fatalf("external failures should be retryable")
	}

	if New(CodeValidation, "").ShouldAlert() {
		t.Fatalf("validation failures should not alert")
	}
}

func TestOptionOverrides(t *testing.T) {
	err := New(CodeValidation, "bad input",
		WithSeverity(SeverityCritical),
		WithAlert(true),
		WithMetadata("field", "amount"),
	)
	if err.Severity() != SeverityCritical {
		t.Fatalf("severity override lost")
	}
	if !err.ShouldAlert() {
		t.Fatalf("alert override lost")
	}
	if err.Metadata()["field"] != "amount" {
		t.Fatalf("metadata lost: %v", err.Metadata())
	}
}

func TestUnregisteredCodeFallsBack(t *testing.T) {
	attr := AttributesOf(Code("NEVER_REGISTERED"))
	if attr.Severity != SeverityCritical {
		t.Fatalf("unregistered codes should inherit UNKNOWN attributes")
	}
}
