package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/nahin/codetutor/internal/apperror"
	"github.com/nahin/codetutor/internal/executor"
	"github.com/nahin/codetutor/internal/model"
	"github.com/nahin/codetutor/internal/repository"
)

// fakeRunRepo is an in-memory implementation of repository.RunRepository.
type fakeRunRepo struct {
	runs   map[string]*model.Run
	nextID int
	// set to a non-nil error to simulate a database failure
	createErr error
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{runs: make(map[string]*model.Run)}
}

func (f *fakeRunRepo) CreateRun(_ context.Context, run *model.Run) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	run.ID = fmt.Sprintf("run-%d", f.nextID)
	run.CreatedAt = time.Now()
	stored := *run
	f.runs[run.ID] = &stored
	return nil
}

func (f *fakeRunRepo) FinishRun(_ context.Context, id string, exitCode int, durationMs int64) error {
	run, ok := f.runs[id]
	if !ok {
		return apperror.NotFound("run", id)
	}
	run.ExitCode = &exitCode
	run.DurationMs = &durationMs
	return nil
}

func (f *fakeRunRepo) GetRunBySessionID(_ context.Context, sessionID string) (*model.Run, error) {
	for _, run := range f.runs {
		if run.SessionID == sessionID && sessionID != "" {
			result := *run
			return &result, nil
		}
	}
	return nil, apperror.NotFound("run", sessionID)
}

func (f *fakeRunRepo) ListRuns(_ context.Context, opts repository.ListOptions) ([]model.Run, error) {
	result := make([]model.Run, 0, len(f.runs))
	for _, run := range f.runs {
		if opts.UserID != "" && run.UserID != opts.UserID {
			continue
		}
		result = append(result, *run)
	}
	return result, nil
}

func newTestRunService(t *testing.T) (*RunService, *fakeRunRepo) {
	t.Helper()
	repo := newFakeRunRepo()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewRunService(repo, logger), repo
}

func TestRecordDirect(t *testing.T) {
	svc, repo := newTestRunService(t)

	result := &executor.ExecutionResult{
		Stdout:   "hi\n",
		ExitCode: 0,
		Duration: 120 * time.Millisecond,
	}
	run, err := svc.RecordDirect(context.Background(), "alice", "prog-1", result)
	if err != nil {
		t.Fatalf("RecordDirect() error = %v", err)
	}

	stored := repo.runs[run.ID]
	if stored.Mode != model.RunModeDirect {
		t.Errorf("Mode = %q, want %q", stored.Mode, model.RunModeDirect)
	}
	if !stored.Finished() {
		t.Error("direct run should be finished on insert")
	}
	if *stored.DurationMs != 120 {
		t.Errorf("DurationMs = %d, want 120", *stored.DurationMs)
	}
}

func TestStartInteractiveAndFinish(t *testing.T) {
	svc, repo := newTestRunService(t)
	ctx := context.Background()

	run, err := svc.StartInteractive(ctx, "alice", "", "sess-1")
	if err != nil {
		t.Fatalf("StartInteractive() error = %v", err)
	}
	if repo.runs[run.ID].Finished() {
		t.Error("interactive run should start unfinished")
	}

	if err := svc.FinishBySession(ctx, "sess-1", 3); err != nil {
		t.Fatalf("FinishBySession() error = %v", err)
	}

	stored := repo.runs[run.ID]
	if !stored.Finished() || *stored.ExitCode != 3 {
		t.Errorf("FinishBySession() did not persist exit code: %+v", stored)
	}
	if *stored.DurationMs < 0 {
		t.Errorf("DurationMs = %d, want >= 0", *stored.DurationMs)
	}
}

func TestFinishBySession_AlreadyFinishedIsNoop(t *testing.T) {
	svc, repo := newTestRunService(t)
	ctx := context.Background()

	run, err := svc.StartInteractive(ctx, "", "", "sess-1")
	if err != nil {
		t.Fatalf("StartInteractive() error = %v", err)
	}
	if err := svc.FinishBySession(ctx, "sess-1", 0); err != nil {
		t.Fatalf("first FinishBySession() error = %v", err)
	}

	// Two pollers can both see the completion chunk's side effects; the
	// second finish must not overwrite or fail.
	if err := svc.FinishBySession(ctx, "sess-1", 99); err != nil {
		t.Fatalf("second FinishBySession() error = %v", err)
	}
	if *repo.runs[run.ID].ExitCode != 0 {
		t.Errorf("second finish overwrote exit code: %d", *repo.runs[run.ID].ExitCode)
	}
}

func TestFinishBySession_UnknownSession(t *testing.T) {
	svc, _ := newTestRunService(t)

	err := svc.FinishBySession(context.Background(), "ghost", 0)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("FinishBySession() error = %v, want ErrNotFound", err)
	}
}

func TestRecordDirect_RepositoryError(t *testing.T) {
	svc, repo := newTestRunService(t)
	repo.createErr = errors.New("disk full")

	_, err := svc.RecordDirect(context.Background(), "", "", &executor.ExecutionResult{})
	if err == nil {
		t.Fatal("RecordDirect() error = nil, want wrapped repository error")
	}
}

func TestRunList_ScopedToUser(t *testing.T) {
	svc, _ := newTestRunService(t)
	ctx := context.Background()

	if _, err := svc.RecordDirect(ctx, "alice", "", &executor.ExecutionResult{}); err != nil {
		t.Fatalf("RecordDirect() error = %v", err)
	}
	if _, err := svc.RecordDirect(ctx, "bob", "", &executor.ExecutionResult{}); err != nil {
		t.Fatalf("RecordDirect() error = %v", err)
	}

	runs, err := svc.List(ctx, "alice", 0, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("List(alice) returned %d runs, want 1", len(runs))
	}
}
