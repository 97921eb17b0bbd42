package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nahin/codetutor/internal/executor"
	"github.com/nahin/codetutor/internal/model"
	"github.com/nahin/codetutor/internal/repository"
)

// RunService records execution history.
//
// Every run gets a row: direct runs arrive with their result already in hand
// and are inserted finished; interactive runs are inserted open when the
// session starts and closed later, when a poll observes the completion chunk.
//
// History is a convenience feature. Callers treat failures here as
// log-and-continue — a database hiccup must never break a running program.
type RunService struct {
	repo   repository.RunRepository
	logger *slog.Logger
}

// NewRunService creates a new RunService.
func NewRunService(repo repository.RunRepository, logger *slog.Logger) *RunService {
	return &RunService{
		repo:   repo,
		logger: logger,
	}
}

// RecordDirect inserts a finished row for a program that ran to completion
// within the grace window.
func (s *RunService) RecordDirect(ctx context.Context, userID, programID string, result *executor.ExecutionResult) (*model.Run, error) {
	exitCode := result.ExitCode
	durationMs := result.Duration.Milliseconds()

	run := &model.Run{
		UserID:     userID,
		ProgramID:  programID,
		Mode:       model.RunModeDirect,
		ExitCode:   &exitCode,
		DurationMs: &durationMs,
	}
	if err := s.repo.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("recording direct run: %w", err)
	}

	return run, nil
}

// StartInteractive inserts an open row for a program that outlived the grace
// window and became a session. FinishBySession closes it later.
func (s *RunService) StartInteractive(ctx context.Context, userID, programID, sessionID string) (*model.Run, error) {
	run := &model.Run{
		UserID:    userID,
		ProgramID: programID,
		Mode:      model.RunModeInteractive,
		SessionID: sessionID,
	}
	if err := s.repo.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("recording interactive run for session %s: %w", sessionID, err)
	}

	return run, nil
}

// FinishBySession closes the open row for a session once its program exits.
// The duration is wall-clock from session start, since the engine doesn't
// report one for interactive runs.
//
// Returns apperror.ErrNotFound when no run was recorded for the session
// (for example if the insert failed at session start).
func (s *RunService) FinishBySession(ctx context.Context, sessionID string, exitCode int) error {
	run, err := s.repo.GetRunBySessionID(ctx, sessionID)
	if err != nil {
		return err
	}
	if run.Finished() {
		// Already closed — a second poller saw the same completion chunk
		// race. Nothing to do.
		return nil
	}

	durationMs := time.Since(run.CreatedAt).Milliseconds()
	if err := s.repo.FinishRun(ctx, run.ID, exitCode, durationMs); err != nil {
		return err
	}

	s.logger.Info("interactive run finished",
		slog.String("sessionID", sessionID),
		slog.Int("exitCode", exitCode),
		slog.Int64("durationMs", durationMs),
	)

	return nil
}

// List retrieves the given user's run history, newest first.
func (s *RunService) List(ctx context.Context, userID string, limit, offset int) ([]model.Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	runs, err := s.repo.ListRuns(ctx, repository.ListOptions{
		UserID: userID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.logger.Error("failed to list runs", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	return runs, nil
}
