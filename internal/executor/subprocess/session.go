package subprocess

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/nahin/codetutor/internal/executor"
)

// session is one spawned program instance.
//
// LOCKING:
// mu guards the output queue, status, and timestamps — it is the per-session
// lock from the concurrency model, scoped to this session only so different
// sessions never contend. inputMu serializes stdin writes relative to each
// other without holding up drains. The engine's registry mutex is never held
// while either of these is taken.
type session struct {
	id        string
	proc      *process
	createdAt time.Time

	mu           sync.Mutex
	queue        []executor.Chunk
	status       executor.SessionStatus
	exitCode     int
	lastActivity time.Time // last PollOutput/SendInput — drives idle eviction
	lastOutput   time.Time // last chunk appended — drives the awaiting_input hint
	delivered    bool      // completion chunk has been drained by the caller
	closed       bool

	inputMu sync.Mutex
}

func newSession(proc *process) *session {
	now := time.Now()
	return &session{
		id:           xid.New().String(),
		proc:         proc,
		createdAt:    now,
		status:       executor.StatusRunning,
		lastActivity: now,
		lastOutput:   now,
	}
}

// appendOutput queues one decoded chunk. Called only by the capture readers.
// Output arriving after close is dropped — the session is gone as far as the
// caller is concerned, and the readers are only still running to reach EOF
// so the process gets reaped.
func (s *session) appendOutput(stream executor.Stream, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, executor.Chunk{Stream: stream, Text: text})
	s.lastOutput = time.Now()
}

// finish records the exit status and queues the synthetic completion chunk.
// Called once by the capture finisher after the process is reaped.
func (s *session) finish(exitCode int, runErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.exitCode = exitCode

	var text string
	switch {
	case runErr != nil:
		s.status = executor.StatusFailed
		text = "\n[program terminated unexpectedly]"
	case exitCode == 0:
		s.status = executor.StatusCompleted
		text = "\n[program finished]"
	default:
		s.status = executor.StatusCompleted
		text = fmt.Sprintf("\n[program exited with code %d]", exitCode)
	}

	code := exitCode
	s.queue = append(s.queue, executor.Chunk{
		Stream:   executor.StreamSystem,
		Text:     text,
		ExitCode: &code,
	})
	s.lastOutput = time.Now()
}

// drain atomically swaps the queue for an empty one and returns the removed
// chunks in production order. The second return value is true when the
// caller has already received the completion chunk on an earlier drain and
// this drain found nothing new — that drain is the acknowledgement, and the
// engine removes the session from the registry.
func (s *session) drain() ([]executor.Chunk, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActivity = time.Now()

	chunks := s.queue
	s.queue = nil

	if s.delivered && len(chunks) == 0 {
		return nil, true
	}
	if s.status == executor.StatusCompleted || s.status == executor.StatusFailed {
		// The completion chunk was queued by finish(); if it hadn't been
		// drained before, it's in this batch.
		s.delivered = true
	}
	return chunks, false
}

// touch records caller activity without draining (used by SendInput).
func (s *session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// idleFor reports how long the session has gone without caller activity.
func (s *session) idleFor(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActivity)
}

// currentStatus returns the session state. A live session that has been
// silent for quietAfter is reported as awaiting_input — a heuristic, since
// no OS facility reveals "blocked reading stdin". Correctness never depends
// on the distinction; the UI uses it to show a "waiting for you" badge.
func (s *session) currentStatus(quietAfter time.Duration) executor.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != executor.StatusRunning {
		return s.status
	}
	if time.Since(s.lastOutput) >= quietAfter {
		return executor.StatusAwaitingInput
	}
	return executor.StatusRunning
}

// markClosed discards buffered output and stops accepting more. The caller
// (engine) kills the process separately.
func (s *session) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.mu.Unlock()
}
