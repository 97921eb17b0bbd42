// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
// In a well-structured Go web app, code is organised into three layers:
//
//	Handler (HTTP layer)    → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer) → reads/writes to the database
//
// WHY A SEPARATE SERVICE LAYER?
// Without a service layer, handlers do everything: parse HTTP, validate data,
// call the database, format responses. That makes business rules untestable
// without spinning up HTTP requests, and unreusable outside HTTP.
//
// THE DEPENDENCY CHAIN:
//
//	main.go creates:  DB → Repository → Service → Handler
//	At runtime:       Handler calls Service calls Repository calls DB
//
// Services take repository INTERFACES, not *sqlite.DB. Tests inject an
// in-memory fake; main.go injects SQLite. The service can't tell the
// difference, which is the point.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nahin/codetutor/internal/apperror"
	"github.com/nahin/codetutor/internal/model"
	"github.com/nahin/codetutor/internal/repository"
)

// Validation constants. Named (not inlined) so error messages and tests can
// reference the same numbers.
const (
	MaxProgramNameLength = 100
	MaxCodeLength        = 100000 // ~100KB of code
	DefaultListLimit     = 20
	MaxListLimit         = 100
)

// ProgramService handles business logic for saved programs: the pieces of
// code a learner keeps around to run again later.
type ProgramService struct {
	repo   repository.ProgramRepository
	logger *slog.Logger
}

// NewProgramService creates a new ProgramService.
// The caller decides WHICH repository implementation to use (SQLite in
// main.go, an in-memory fake in tests).
func NewProgramService(repo repository.ProgramRepository, logger *slog.Logger) *ProgramService {
	return &ProgramService{
		repo:   repo,
		logger: logger,
	}
}

// Create validates and saves a new program.
//
// userID may be empty: programs created without logging in are anonymous.
// They still run fine — they just aren't listed under anyone's account.
//
// The method accepts primitives, not *http.Request. The service has zero
// knowledge of HTTP; the handler translates both ways.
func (s *ProgramService) Create(ctx context.Context, userID, name, code, description string) (*model.Program, error) {
	name = strings.TrimSpace(name)

	if name == "" {
		return nil, apperror.ValidationFailed("name", "program name is required")
	}
	if len(name) > MaxProgramNameLength {
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("program name must be %d characters or less", MaxProgramNameLength))
	}
	if len(code) > MaxCodeLength {
		return nil, apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d characters or less", MaxCodeLength))
	}

	program := &model.Program{
		UserID:      userID,
		Name:        name,
		Code:        code,
		Description: strings.TrimSpace(description),
	}

	// The repo fills in ID and timestamps.
	if err := s.repo.CreateProgram(ctx, program); err != nil {
		s.logger.Error("failed to create program",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating program: %w", err)
	}

	s.logger.Info("program created",
		slog.String("id", program.ID),
		slog.String("name", program.Name),
	)

	return program, nil
}

// GetByID retrieves a program by its ID.
// Returns apperror.ErrNotFound if the program doesn't exist.
func (s *ProgramService) GetByID(ctx context.Context, id string) (*model.Program, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "program ID is required")
	}

	program, err := s.repo.GetProgramByID(ctx, id)
	if err != nil {
		// NotFound is a normal response, not a failure worth logging.
		return nil, err
	}

	return program, nil
}

// List retrieves the given user's programs with pagination.
// limit is clamped to 1-100 (default 20); negative offsets become 0.
func (s *ProgramService) List(ctx context.Context, userID string, limit, offset int) ([]model.Program, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	programs, err := s.repo.ListPrograms(ctx, repository.ListOptions{
		UserID: userID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.logger.Error("failed to list programs", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing programs: %w", err)
	}

	return programs, nil
}

// Update modifies an existing program.
//
// STRATEGY: fetch, check ownership, apply changes, save. The fetch gives a
// consistent NotFound error and lets us enforce ownership before touching
// anything.
//
// Ownership rule: a program owned by someone else can't be modified.
// Anonymous programs (empty UserID) are open — anyone may edit them.
func (s *ProgramService) Update(ctx context.Context, userID, id, name, code, description string) (*model.Program, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "program ID is required")
	}

	program, err := s.repo.GetProgramByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if program.UserID != "" && program.UserID != userID {
		return nil, apperror.Forbidden("you don't own this program")
	}

	// Empty name means "don't change"; code CAN be emptied on purpose.
	if name = strings.TrimSpace(name); name != "" {
		if len(name) > MaxProgramNameLength {
			return nil, apperror.ValidationFailed("name",
				fmt.Sprintf("program name must be %d characters or less", MaxProgramNameLength))
		}
		program.Name = name
	}

	if len(code) > MaxCodeLength {
		return nil, apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d characters or less", MaxCodeLength))
	}
	program.Code = code
	program.Description = strings.TrimSpace(description)

	if err := s.repo.UpdateProgram(ctx, program); err != nil {
		s.logger.Error("failed to update program",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating program: %w", err)
	}

	s.logger.Info("program updated",
		slog.String("id", program.ID),
		slog.String("name", program.Name),
	)

	return program, nil
}

// Delete removes a program, enforcing the same ownership rule as Update.
// Returns apperror.ErrNotFound if the program doesn't exist.
func (s *ProgramService) Delete(ctx context.Context, userID, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "program ID is required")
	}

	program, err := s.repo.GetProgramByID(ctx, id)
	if err != nil {
		return err
	}
	if program.UserID != "" && program.UserID != userID {
		return apperror.Forbidden("you don't own this program")
	}

	if err := s.repo.DeleteProgram(ctx, id); err != nil {
		return err
	}

	s.logger.Info("program deleted", slog.String("id", id))
	return nil
}
