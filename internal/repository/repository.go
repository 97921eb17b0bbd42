// Package repository declares the storage interfaces the service layer
// depends on. The concrete implementation lives in repository/sqlite;
// service tests swap in hand-written in-memory mocks.
package repository

import (
	"context"

	"github.com/nahin/codetutor/internal/model"
)

// ListOptions carries pagination and ownership scoping for list queries.
// An empty UserID means "no ownership filter" (anonymous mode).
type ListOptions struct {
	UserID string
	Limit  int
	Offset int
}

// ProgramRepository stores the learner's saved practice programs.
type ProgramRepository interface {
	CreateProgram(ctx context.Context, program *model.Program) error
	GetProgramByID(ctx context.Context, id string) (*model.Program, error)
	ListPrograms(ctx context.Context, opts ListOptions) ([]model.Program, error)
	UpdateProgram(ctx context.Context, program *model.Program) error
	DeleteProgram(ctx context.Context, id string) error
}

// RunRepository stores the execution history.
//
// Direct runs are inserted already finished. Interactive runs are inserted
// when the session starts (exit code unknown) and completed via FinishRun
// once the completion chunk reaches the client; runs abandoned to the idle
// sweeper simply stay unfinished.
type RunRepository interface {
	CreateRun(ctx context.Context, run *model.Run) error
	FinishRun(ctx context.Context, id string, exitCode int, durationMs int64) error
	GetRunBySessionID(ctx context.Context, sessionID string) (*model.Run, error)
	ListRuns(ctx context.Context, opts ListOptions) ([]model.Run, error)
}

// UserRepository stores learner accounts keyed by GitHub identity.
type UserRepository interface {
	Upsert(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}
