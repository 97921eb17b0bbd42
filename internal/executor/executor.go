// Package executor defines the contract between the HTTP layer and the
// code-execution engine.
//
// TWO EXECUTION MODES:
// A program submitted by a learner either finishes quickly (print a result,
// exit) or it wants to talk — typically because it called input() and is now
// blocked waiting for a line the learner hasn't typed yet. The engine probes
// this at runtime: it gives every program a short grace window, and anything
// still alive at the end of the window becomes an interactive *session*
// identified by an opaque ID. There is no static analysis of the source —
// "does this program read input" is undecidable in general, so we just run
// it and watch.
//
// The interfaces here keep the handlers decoupled from the concrete engine
// (internal/executor/subprocess), the same way the program handlers are
// decoupled from SQLite via the repository interfaces.
package executor

import (
	"context"
	"time"
)

// ExecutionRequest represents a request to execute a learner's program.
type ExecutionRequest struct {
	Code string `json:"code"`
}

// ExecutionResult represents the output and status of a direct (non-interactive)
// execution. A nonzero ExitCode is NOT an engine error — it's data for the
// caller to display, exactly like a terminal would.
type ExecutionResult struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
}

// Outcome is the result of Execute. Exactly one of the two fields is set:
//   - Result    → the program exited within the grace window (direct mode)
//   - SessionID → the program is still running and was registered as an
//     interactive session to be driven via the SessionManager
type Outcome struct {
	Result    *ExecutionResult `json:"result,omitempty"`
	SessionID string           `json:"sessionId,omitempty"`
}

// Interactive reports whether the outcome is a live session.
func (o *Outcome) Interactive() bool {
	return o != nil && o.SessionID != ""
}

// Stream identifies which pipe an output chunk was read from.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
	// StreamSystem marks synthetic chunks produced by the engine itself,
	// currently only the completion chunk appended when the process exits.
	StreamSystem Stream = "system"
)

// Chunk is one unit of decoded output drained from a session.
//
// Order within a single stream is exact. Order ACROSS stdout and stderr is
// best-effort — the two pipes are read by independent goroutines, so a
// program that interleaves prints and error writes very quickly may see them
// arrive slightly reordered relative to each other (same as a real terminal
// with buffered pipes).
//
// The final chunk of every session has Stream == StreamSystem and a non-nil
// ExitCode. Its Text is a human-readable completion line the UI can print
// verbatim.
type Chunk struct {
	Stream   Stream `json:"stream"`
	Text     string `json:"text"`
	ExitCode *int   `json:"exitCode,omitempty"`
}

// SessionStatus is the lifecycle state of an interactive session.
type SessionStatus string

const (
	StatusRunning SessionStatus = "running"
	// StatusAwaitingInput is a best-effort UI hint: the process is alive but
	// has produced no output for a while, which usually means it's blocked on
	// a read. There is no OS signal for "blocked on stdin", so this must
	// never be used for correctness decisions — only for showing a
	// "waiting for you" indicator.
	StatusAwaitingInput SessionStatus = "awaiting_input"
	StatusCompleted     SessionStatus = "completed"
	StatusFailed        SessionStatus = "failed"
)

// Executor starts a program and classifies it as direct or interactive.
type Executor interface {
	Execute(ctx context.Context, req ExecutionRequest) (*Outcome, error)
}

// SessionManager drives a live interactive session by ID.
//
// All methods are short and non-blocking: the blocking reads on the child's
// pipes happen inside the engine's background goroutines, never inside these
// calls. Unknown or already-closed IDs yield apperror.ErrNotFound; writing
// to an exited process yields apperror.ErrClosedPipe.
type SessionManager interface {
	// PollOutput atomically drains and returns everything the session has
	// produced since the previous drain. An empty slice is a normal answer
	// meaning "nothing new yet" — it never blocks waiting for output.
	PollOutput(id string) ([]Chunk, error)

	// SendInput appends a newline and writes the text to the program's stdin.
	SendInput(id, text string) error

	// IsRunning reports whether the process is still alive.
	IsRunning(id string) (bool, error)

	// Status returns the session's current state, including the heuristic
	// awaiting_input hint.
	Status(id string) (SessionStatus, error)

	// CloseSession kills the process if needed and discards the session.
	// It is idempotent: closing an unknown or already-closed ID is a no-op.
	CloseSession(id string)
}
