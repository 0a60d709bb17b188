package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/bitswalk/kforge/src/common/errors"
)

// =============================================================================
// Error Creation Tests
// =============================================================================

func TestError_New(t *testing.T) {
	err := errors.New(errors.DomainArtifact, "test_code", errors.ExitPrecondition, "test message")

	if err.Domain != errors.DomainArtifact {
		t.Fatalf("expected domain %s, got %s", errors.DomainArtifact, err.Domain)
	}
	if err.Code != "test_code" {
		t.Fatalf("expected code test_code, got %s", err.Code)
	}
	if err.ExitCode != errors.ExitPrecondition {
		t.Fatalf("expected exit code %d, got %d", errors.ExitPrecondition, err.ExitCode)
	}
	if err.Message != "test message" {
		t.Fatalf("expected message 'test message', got %s", err.Message)
	}
}

func TestError_Wrap(t *testing.T) {
	cause := stderrors.New("exit status 2")
	err := errors.Wrap(cause, errors.DomainToolchain, "invocation_failed", errors.ExitFailure, "assembler failed")

	if err.Unwrap() != cause {
		t.Fatal("expected wrapped error to be returned by Unwrap")
	}

	errStr := err.Error()
	if errStr != "toolchain.invocation_failed: assembler failed: exit status 2" {
		t.Fatalf("unexpected error string: %s", errStr)
	}
}

// =============================================================================
// Error Methods Tests
// =============================================================================

func TestError_WithCause(t *testing.T) {
	original := errors.ErrArtifactMissing
	cause := stderrors.New("stat kernel.elf: no such file or directory")

	wrapped := original.WithCause(cause)

	if original.Unwrap() != nil {
		t.Fatal("original error should not have cause")
	}
	if wrapped.Unwrap() != cause {
		t.Fatal("wrapped error should have cause")
	}
	if wrapped.Domain != original.Domain || wrapped.Code != original.Code {
		t.Fatal("wrapped error should maintain domain and code")
	}
}

func TestError_WithMessagef(t *testing.T) {
	custom := errors.ErrArtifactMissing.WithMessagef("kernel image not found at %s", "/ws/kernel.elf")

	expected := "kernel image not found at /ws/kernel.elf"
	if custom.Message != expected {
		t.Fatalf("expected message '%s', got '%s'", expected, custom.Message)
	}
	if errors.ErrArtifactMissing.Message == custom.Message {
		t.Fatal("original message should not be changed")
	}
}

func TestError_WithExitCode(t *testing.T) {
	custom := errors.ErrToolInvocation.WithExitCode(42)
	if custom.ExitCode != 42 {
		t.Fatalf("expected exit code 42, got %d", custom.ExitCode)
	}
	if errors.ErrToolInvocation.ExitCode != errors.ExitFailure {
		t.Fatal("original exit code should not be changed")
	}
}

func TestError_Is(t *testing.T) {
	if !errors.Is(errors.ErrArtifactMissing, errors.ErrArtifactMissing) {
		t.Fatal("same error should match with Is")
	}

	wrapped := errors.ErrArtifactMissing.WithCause(stderrors.New("cause"))
	if !errors.Is(wrapped, errors.ErrArtifactMissing) {
		t.Fatal("wrapped error should match original with Is")
	}

	outer := fmt.Errorf("stage link: %w", errors.ErrToolInvocation.WithMessage("cargo failed"))
	if !errors.Is(outer, errors.ErrToolInvocation) {
		t.Fatal("fmt-wrapped error should match with Is")
	}

	if errors.Is(errors.ErrArtifactMissing, errors.ErrToolInvocation) {
		t.Fatal("different errors should not match")
	}
}

func TestError_As(t *testing.T) {
	err := fmt.Errorf("outer: %w", errors.ErrPrivilegedOperation.WithCause(stderrors.New("mount: permission denied")))

	var target *errors.Error
	if !errors.As(err, &target) {
		t.Fatal("As should find *Error in chain")
	}
	if target.Domain != errors.DomainPrivilege {
		t.Fatalf("As should extract correct error, got domain %s", target.Domain)
	}
}

// =============================================================================
// Helper Function Tests
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil", nil, 0},
		{"plain error", stderrors.New("boom"), 1},
		{"missing artifact", errors.ErrArtifactMissing, errors.ExitPrecondition},
		{"wrapped config", fmt.Errorf("x: %w", errors.ErrConfigInvalid), errors.ExitConfig},
		{"tool exit status", errors.ErrToolInvocation.WithExitCode(3), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.GetExitCode(tt.err); got != tt.expected {
				t.Errorf("GetExitCode() = %d, expected %d", got, tt.expected)
			}
		})
	}
}

func TestGetCodeAndDomain(t *testing.T) {
	if errors.GetCode(errors.ErrArtifactMissing) != errors.CodeMissing {
		t.Error("expected missing code")
	}
	if errors.GetDomain(errors.ErrArtifactMissing) != errors.DomainArtifact {
		t.Error("expected artifact domain")
	}
	if errors.GetCode(stderrors.New("plain")) != "" {
		t.Error("expected empty code for plain error")
	}
}

func TestNewReport(t *testing.T) {
	r := errors.NewReport(errors.ErrArtifactMissing.WithMessage("kernel image not found").WithCause(stderrors.New("stat failed")))
	if r.Error != "artifact.missing" {
		t.Errorf("unexpected report error: %s", r.Error)
	}
	if r.Cause != "stat failed" {
		t.Errorf("unexpected report cause: %s", r.Cause)
	}
	if r.ExitCode != errors.ExitPrecondition {
		t.Errorf("unexpected report exit code: %d", r.ExitCode)
	}

	plain := errors.NewReport(stderrors.New("boom"))
	if plain.Error != "internal.internal_error" || plain.Message != "boom" {
		t.Errorf("unexpected plain report: %+v", plain)
	}
}
