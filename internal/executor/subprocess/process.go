package subprocess

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// errProcessExited is returned by writeStdin after the child has exited.
// The engine translates it into apperror.ClosedPipe with the session id.
var errProcessExited = errors.New("process has exited")

// process owns one child interpreter process and its three pipes.
//
// OWNERSHIP RULES:
//   - Only the capture goroutines read stdout/stderr.
//   - Only writeStdin (serialized by the session) writes stdin.
//   - reap() is called exactly once, by the capture pipe, after both reader
//     goroutines hit EOF — exec.Cmd.Wait must not run while the pipes are
//     still being read, and calling it late guarantees the child is always
//     reaped (no zombies), even when it was killed.
type process struct {
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stdout     io.ReadCloser
	stderr     io.ReadCloser
	scriptPath string

	// done is closed by reap() once the exit status is recorded.
	done     chan struct{}
	exitCode int
	runErr   error // non-exit failures (I/O errors, wait failures)

	killOnce sync.Once
}

// startProcess writes the source to a temp script file and spawns the
// interpreter on it with all three standard streams piped.
//
// A temp file (rather than `python3 -c code`) keeps the command line short,
// survives sources with arbitrary quoting, and gives tracebacks a real file
// name. The file is deleted in reap().
func startProcess(cfg Config, code string) (*process, error) {
	script, err := os.CreateTemp("", "codetutor-*.py")
	if err != nil {
		return nil, fmt.Errorf("creating script file: %w", err)
	}
	if _, err := script.WriteString(code); err != nil {
		script.Close()
		os.Remove(script.Name())
		return nil, fmt.Errorf("writing script file: %w", err)
	}
	if err := script.Close(); err != nil {
		os.Remove(script.Name())
		return nil, fmt.Errorf("closing script file: %w", err)
	}

	args := append(append([]string{}, cfg.Args...), script.Name())
	cmd := exec.Command(cfg.Interpreter, args...)

	p := &process{
		cmd:        cmd,
		scriptPath: script.Name(),
		done:       make(chan struct{}),
	}

	if p.stdin, err = cmd.StdinPipe(); err != nil {
		os.Remove(script.Name())
		return nil, fmt.Errorf("opening stdin pipe: %w", err)
	}
	if p.stdout, err = cmd.StdoutPipe(); err != nil {
		os.Remove(script.Name())
		return nil, fmt.Errorf("opening stdout pipe: %w", err)
	}
	if p.stderr, err = cmd.StderrPipe(); err != nil {
		os.Remove(script.Name())
		return nil, fmt.Errorf("opening stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		os.Remove(script.Name())
		return nil, fmt.Errorf("starting %s: %w", cfg.Interpreter, err)
	}

	return p, nil
}

// reap waits for the child, records its exit status, deletes the script
// file, and closes done. Must be called once, after both pipe readers
// finished.
func (p *process) reap() {
	err := p.cmd.Wait()
	switch {
	case err == nil:
		p.exitCode = 0
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Nonzero exit or killed by a signal (ExitCode() is -1 then).
			// Either way it's completion data, not an engine failure.
			p.exitCode = exitErr.ExitCode()
		} else {
			p.exitCode = -1
			p.runErr = err
		}
	}
	os.Remove(p.scriptPath)
	close(p.done)
}

// exited reports whether the child's exit status has been collected.
// Non-blocking.
func (p *process) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// writeStdin writes raw bytes to the child's stdin.
//
// Returns errProcessExited if the child is already gone. A write that races
// with the exit can still fail with a broken-pipe error from the OS; callers
// treat any error here as "the run is over".
func (p *process) writeStdin(b []byte) error {
	if p.exited() {
		return errProcessExited
	}
	if _, err := p.stdin.Write(b); err != nil {
		return fmt.Errorf("writing to stdin: %w", err)
	}
	return nil
}

// kill terminates the child. Idempotent; a no-op if the process already
// exited (the Kill error is ignored). Reaping still happens in reap(),
// driven by the readers observing EOF.
func (p *process) kill() {
	p.killOnce.Do(func() {
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
	})
}
