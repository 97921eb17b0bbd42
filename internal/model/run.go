package model

import "time"

// Run modes. A direct run finished within the engine's grace window and
// returned its result synchronously; an interactive run outlived the window
// and was driven through a polled session.
const (
	RunModeDirect      = "direct"
	RunModeInteractive = "interactive"
)

// Run is one execution in the learner's history.
//
// WHY A NULLABLE EXIT CODE?
// An interactive run gets its row when the session starts, before the
// program has exited — there is no exit code yet. ExitCode is a *int so the
// zero exit status (0) is distinguishable from "still unknown": nil means
// the run hasn't finished (or was abandoned and swept), a non-nil 0 means a
// clean exit. Same reasoning for DurationMs.
type Run struct {
	ID         string    `json:"id"                  db:"id"`
	UserID     string    `json:"userId,omitempty"    db:"user_id"`
	ProgramID  string    `json:"programId,omitempty" db:"program_id"`
	Mode       string    `json:"mode"                db:"mode"`
	SessionID  string    `json:"sessionId,omitempty" db:"session_id"`
	ExitCode   *int      `json:"exitCode,omitempty"  db:"exit_code"`
	DurationMs *int64    `json:"durationMs,omitempty" db:"duration_ms"`
	CreatedAt  time.Time `json:"createdAt"           db:"created_at"`
}

// Finished reports whether the run has a recorded exit status.
func (r *Run) Finished() bool {
	return r.ExitCode != nil
}
