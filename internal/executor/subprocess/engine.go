// Package subprocess implements the execution engine on top of host child
// processes.
//
// THE TIMING PROBLEM THIS PACKAGE SOLVES:
// The UI can only make short, non-blocking calls in a polling loop. A child
// process does blocking, unbounded I/O — a program that calls input() sits
// on a read forever until the learner types something. Bridging the two
// naively causes exactly the bugs this design exists to prevent: a handler
// blocked on a pipe read, a killed-but-never-reaped zombie, output lost
// between calls, or two pollers splitting a chunk.
//
// The bridge works like this:
//   - All blocking reads live in background goroutines (capture.go), which
//     feed a lock-protected queue per session.
//   - Execute waits a configurable grace window; programs that exit inside
//     it are answered synchronously, everything else becomes a registered
//     session identified by an opaque ID.
//   - The public methods only ever touch the registry map and the session
//     queues, so every call returns promptly no matter what the child does.
//   - A sweeper closes sessions whose caller stopped polling, so a UI that
//     crashed or navigated away never leaks an OS process.
package subprocess

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nahin/codetutor/internal/apperror"
	"github.com/nahin/codetutor/internal/executor"
)

// Engine implements executor.Executor and executor.SessionManager using
// child interpreter processes.
type Engine struct {
	config Config
	logger *slog.Logger

	// mu guards the sessions map only — insert, lookup, remove. Per-session
	// state has its own lock; see session.go.
	mu       sync.Mutex
	sessions map[string]*session

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates an Engine and starts its idle sweeper. The registry starts
// empty; call Shutdown on the way out to kill and reap every live session.
func New(cfg Config, logger *slog.Logger) *Engine {
	e := &Engine{
		config:   cfg.withDefaults(),
		logger:   logger,
		sessions: make(map[string]*session),
		done:     make(chan struct{}),
	}

	e.wg.Add(1)
	go e.sweep()

	return e
}

// Execute runs the given source and classifies the run.
//
// The classification is a behavioral probe, not analysis: spawn, then wait
// up to the grace window for exit. A CPU-bound program that needs longer
// than the window is indistinguishable from an interactive one here — it
// simply becomes a session that happens to finish on its own later, which
// converges to the same observable result.
func (e *Engine) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.Outcome, error) {
	start := time.Now()

	proc, err := startProcess(e.config, req.Code)
	if err != nil {
		// Interpreter missing or unusable. No session exists, nothing to
		// clean up beyond what startProcess already did.
		e.logger.Error("failed to spawn interpreter",
			slog.String("interpreter", e.config.Interpreter),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Unavailable(fmt.Sprintf("cannot start interpreter: %v", err))
	}

	sess := newSession(proc)
	cap := newCapture(proc, sess)
	cap.start()

	grace := time.NewTimer(e.config.GraceWindow)
	defer grace.Stop()

	select {
	case <-cap.done:
		// Direct mode: the program already exited and every chunk is queued.
		chunks, _ := sess.drain()
		result := collectResult(chunks, time.Since(start))
		e.logger.Info("program completed directly",
			slog.Int("exitCode", result.ExitCode),
			slog.Duration("duration", result.Duration),
		)
		return &executor.Outcome{Result: result}, nil

	case <-grace.C:
		// Interactive mode: register and let capture continue in the
		// background.
		e.mu.Lock()
		e.sessions[sess.id] = sess
		e.mu.Unlock()

		e.logger.Info("program registered as interactive session",
			slog.String("sessionID", sess.id),
			slog.Duration("graceWindow", e.config.GraceWindow),
		)
		return &executor.Outcome{SessionID: sess.id}, nil

	case <-ctx.Done():
		// Caller gave up during the grace window (request canceled).
		proc.kill()
		<-cap.done
		return nil, ctx.Err()
	}
}

// PollOutput drains and returns the session's queued chunks.
//
// Never blocks on the child: the swap-drain happens under the session lock,
// and concurrent polls are linearized by it — a chunk goes to exactly one
// poller. The drain after the one that delivered the completion chunk acts
// as the caller's acknowledgement and removes the session.
func (e *Engine) PollOutput(id string) ([]executor.Chunk, error) {
	sess, err := e.lookup(id)
	if err != nil {
		return nil, err
	}

	chunks, acked := sess.drain()
	if acked {
		e.remove(id)
		e.logger.Debug("session acknowledged and removed", slog.String("sessionID", id))
		return []executor.Chunk{}, nil
	}
	if chunks == nil {
		chunks = []executor.Chunk{}
	}
	return chunks, nil
}

// SendInput appends a newline and writes the text to the program's stdin.
// Writes on the same session are serialized; the queue and pipes are never
// corrupted by a drain running concurrently.
func (e *Engine) SendInput(id, text string) error {
	sess, err := e.lookup(id)
	if err != nil {
		return err
	}

	sess.inputMu.Lock()
	defer sess.inputMu.Unlock()

	if err := sess.proc.writeStdin([]byte(text + "\n")); err != nil {
		// Exited before (or while) we wrote — either way the run is over.
		return apperror.ClosedPipe(id)
	}

	sess.touch()
	return nil
}

// IsRunning reports whether the session's process is still alive. False once
// the process has actually exited; unknown IDs return ErrNotFound.
func (e *Engine) IsRunning(id string) (bool, error) {
	sess, err := e.lookup(id)
	if err != nil {
		return false, err
	}
	return !sess.proc.exited(), nil
}

// Status returns the session state including the awaiting_input hint.
func (e *Engine) Status(id string) (executor.SessionStatus, error) {
	sess, err := e.lookup(id)
	if err != nil {
		return "", err
	}
	return sess.currentStatus(e.config.QuietAfter), nil
}

// CloseSession kills the process if alive, discards buffered output, and
// removes the registry entry. Idempotent — closing an unknown or already
// closed ID is not an error. Safe to call concurrently with in-flight
// PollOutput/SendInput: those either complete first or fail cleanly with
// ErrNotFound/ErrClosedPipe afterwards.
func (e *Engine) CloseSession(id string) {
	e.mu.Lock()
	sess, ok := e.sessions[id]
	delete(e.sessions, id)
	e.mu.Unlock()

	if !ok {
		return
	}

	sess.markClosed()
	sess.proc.kill()
	e.logger.Info("session closed", slog.String("sessionID", id))
}

// Shutdown stops the sweeper and closes every live session. Used on server
// shutdown so no child outlives the service.
func (e *Engine) Shutdown() {
	e.stopOnce.Do(func() {
		close(e.done)
		e.wg.Wait()

		e.mu.Lock()
		ids := make([]string, 0, len(e.sessions))
		for id := range e.sessions {
			ids = append(ids, id)
		}
		e.mu.Unlock()

		for _, id := range ids {
			e.CloseSession(id)
		}
		e.logger.Info("execution engine shut down", slog.Int("closedSessions", len(ids)))
	})
}

// lookup finds a live session; unknown or retired IDs yield ErrNotFound.
func (e *Engine) lookup(id string) (*session, error) {
	e.mu.Lock()
	sess, ok := e.sessions[id]
	e.mu.Unlock()
	if !ok {
		return nil, apperror.NotFound("session", id)
	}
	return sess, nil
}

func (e *Engine) remove(id string) {
	e.mu.Lock()
	delete(e.sessions, id)
	e.mu.Unlock()
}

// collectResult folds a fully drained chunk sequence into a direct result.
// The completion chunk carries the exit code; its marker text is engine
// chrome, not program output, so it stays out of stdout/stderr.
func collectResult(chunks []executor.Chunk, duration time.Duration) *executor.ExecutionResult {
	var stdout, stderr strings.Builder
	exitCode := 0

	for _, c := range chunks {
		switch c.Stream {
		case executor.StreamStdout:
			stdout.WriteString(c.Text)
		case executor.StreamStderr:
			stderr.WriteString(c.Text)
		case executor.StreamSystem:
			if c.ExitCode != nil {
				exitCode = *c.ExitCode
			}
		}
	}

	return &executor.ExecutionResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
		Duration: duration,
	}
}
