// GO TESTING BASICS:
// 1. Test files MUST end in _test.go — Go's tooling auto-discovers them
// 2. Test functions MUST start with "Test" and take *testing.T as the only param
// 3. Same package as the code being tested (so we can access unexported stuff)
// 4. Run with: go test ./internal/apperror/ -v  (-v = verbose, shows each test name)
package apperror

import (
	"errors"
	"testing"
)

// TABLE-DRIVEN TESTS:
// Go's idiomatic pattern for testing multiple cases: define a slice of test
// cases and loop over them. Adding a new case = adding one struct to the
// slice, and every case gets a name in the test output.

func TestErrorsIs(t *testing.T) {
	// Each test case checks that errors.Is() correctly identifies the error type
	tests := []struct {
		name      string // Descriptive name for test output
		err       error  // The error to test
		target    error  // What we expect it to match
		wantMatch bool   // Should errors.Is() return true?
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("session", "cv37rs3pp9olc6atsptg"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("code", "code is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("program", "abc123"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "ClosedPipe wraps ErrClosedPipe",
			err:       ClosedPipe("cv37rs3pp9olc6atsptg"),
			target:    ErrClosedPipe,
			wantMatch: true,
		},
		{
			name:      "Unavailable wraps ErrUnavailable",
			err:       Unavailable("interpreter binary not found"),
			target:    ErrUnavailable,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("session", "abc123"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "ClosedPipe does NOT match ErrNotFound",
			err:       ClosedPipe("abc123"),
			target:    ErrNotFound,
			wantMatch: false,
		},
	}

	// t.Run() creates a sub-test for each case.
	// Output looks like: TestErrorsIs/NotFound_wraps_ErrNotFound
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("session", "abc123"),
			wantMessage: "session not found with id abc123",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("name", "name is required"),
			wantMessage: "name is required",
		},
		{
			name:        "ClosedPipe message names the session",
			err:         ClosedPipe("abc123"),
			wantMessage: "program in session abc123 has already exited",
		},
		{
			name:        "Unavailable uses custom message",
			err:         Unavailable("python3 not installed"),
			wantMessage: "python3 not installed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// .Error() should return the human-readable message
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	// Unwrap() must return the underlying sentinel — that's what makes
	// errors.Is() walk the chain.
	err := ClosedPipe("abc123")
	if unwrapped := err.Unwrap(); unwrapped != ErrClosedPipe {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrClosedPipe)
	}
}

func TestValidationFailedField(t *testing.T) {
	// The Field lets handlers tell the frontend WHICH field was invalid.
	err := ValidationFailed("code", "code too large")

	if err.Field != "code" {
		t.Errorf("Field = %q, want %q", err.Field, "code")
	}
}
