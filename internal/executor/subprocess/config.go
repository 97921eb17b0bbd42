package subprocess

import (
	"time"
)

// Config holds the configuration for the subprocess execution engine.
type Config struct {
	// Interpreter is the binary used to run learner programs, e.g. "python3".
	// It must be on PATH (or be an absolute path). The engine treats it as a
	// given, swappable dependency — tests drive the engine with /bin/sh.
	Interpreter string
	// Args are passed to the interpreter before the script path.
	Args []string
	// GraceWindow is how long Execute waits for the program to exit before
	// classifying the run as interactive. This is an empirical knob with no
	// single correct value: too short and slow-but-finite programs become
	// sessions, too long and every interactive program feels laggy to start.
	// It must stay configuration — callers tune it, code never assumes it.
	GraceWindow time.Duration
	// IdleTimeout is how long a session may go without any PollOutput or
	// SendInput call before the sweeper force-closes it.
	IdleTimeout time.Duration
	// SweepInterval is how often the sweeper scans for idle sessions.
	SweepInterval time.Duration
	// QuietAfter is how long a running session must be silent before its
	// status is reported as awaiting_input. Purely a UI hint.
	QuietAfter time.Duration
}

// DefaultConfig provides sensible defaults for running learner Python programs.
func DefaultConfig() Config {
	return Config{
		Interpreter: "python3",
		// -u disables Python's block buffering. Without it a program writing
		// to a pipe (not a tty) holds its prompt in a 4KB buffer, and an
		// interactive session would show nothing until the buffer fills.
		Args: []string{"-u"},
		// 1 second sits between "every print feels instant" and "a program
		// doing real work still gets classified as direct".
		GraceWindow: 1 * time.Second,
		// Long enough for a learner to read a prompt and think; short enough
		// that a UI that navigated away doesn't leak a process for long.
		IdleTimeout:   2 * time.Minute,
		SweepInterval: 15 * time.Second,
		QuietAfter:    2 * time.Second,
	}
}

// withDefaults fills any zero field from DefaultConfig so a partially
// populated Config doesn't produce a sweeper that never ticks or a grace
// window of zero.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Interpreter == "" {
		c.Interpreter = def.Interpreter
		if c.Args == nil {
			c.Args = def.Args
		}
	}
	if c.GraceWindow <= 0 {
		c.GraceWindow = def.GraceWindow
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = def.IdleTimeout
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = def.SweepInterval
	}
	if c.QuietAfter <= 0 {
		c.QuietAfter = def.QuietAfter
	}
	return c
}
