package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/nahin/codetutor/internal/apperror"
	"github.com/nahin/codetutor/internal/model"
	"github.com/nahin/codetutor/internal/repository"
)

// compile-time check that *DB implements repository.RunRepository
var _ repository.RunRepository = (*DB)(nil)

// CreateRun inserts one execution-history row. Direct runs arrive already
// finished (exit code and duration set); interactive runs arrive open and
// are completed later via FinishRun.
func (db *DB) CreateRun(ctx context.Context, run *model.Run) error {
	run.ID = xid.New().String()
	run.CreatedAt = time.Now()

	var exitCode sql.NullInt64
	if run.ExitCode != nil {
		exitCode = sql.NullInt64{Int64: int64(*run.ExitCode), Valid: true}
	}
	var durationMs sql.NullInt64
	if run.DurationMs != nil {
		durationMs = sql.NullInt64{Int64: *run.DurationMs, Valid: true}
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO runs (id, user_id, program_id, mode, session_id, exit_code, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		nullable(run.UserID),
		nullable(run.ProgramID),
		run.Mode,
		run.SessionID,
		exitCode,
		durationMs,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating run: %w", err)
	}

	return nil
}

// FinishRun records the exit status of a previously open run. Finishing an
// already finished run overwrites — the completion chunk is delivered once,
// so in practice this runs once per session.
func (db *DB) FinishRun(ctx context.Context, id string, exitCode int, durationMs int64) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE runs SET exit_code = ?, duration_ms = ? WHERE id = ?`,
		exitCode, durationMs, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: finishing run %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("run", id)
	}

	return nil
}

// GetRunBySessionID finds the open run for a live session. Used by the poll
// handler when the completion chunk comes through.
func (db *DB) GetRunBySessionID(ctx context.Context, sessionID string) (*model.Run, error) {
	if sessionID == "" {
		return nil, apperror.NotFound("run", sessionID)
	}

	row := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, program_id, mode, session_id, exit_code, duration_ms, created_at
		 FROM runs WHERE session_id = ?`,
		sessionID,
	)
	run, err := scanRun(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("run", sessionID)
		}
		return nil, fmt.Errorf("sqlite: getting run for session %s: %w", sessionID, err)
	}

	return run, nil
}

// ListRuns retrieves history newest-first, optionally scoped to one learner.
func (db *DB) ListRuns(ctx context.Context, opts repository.ListOptions) ([]model.Run, error) {
	limit, offset := clampPage(opts)

	query := `SELECT id, user_id, program_id, mode, session_id, exit_code, duration_ms, created_at
		 FROM runs`
	args := []any{}
	if opts.UserID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, opts.UserID)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing runs: %w", err)
	}
	defer rows.Close()

	runs := make([]model.Run, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning run row: %w", err)
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating runs: %w", err)
	}

	return runs, nil
}

// scanRun reads one runs row via the given Scan function, so QueryRow and
// Rows iteration share the column order in one place.
func scanRun(scan func(...any) error) (*model.Run, error) {
	var (
		run        model.Run
		userID     sql.NullString
		programID  sql.NullString
		exitCode   sql.NullInt64
		durationMs sql.NullInt64
	)

	if err := scan(
		&run.ID,
		&userID,
		&programID,
		&run.Mode,
		&run.SessionID,
		&exitCode,
		&durationMs,
		&run.CreatedAt,
	); err != nil {
		return nil, err
	}

	run.UserID = userID.String
	run.ProgramID = programID.String
	if exitCode.Valid {
		code := int(exitCode.Int64)
		run.ExitCode = &code
	}
	if durationMs.Valid {
		ms := durationMs.Int64
		run.DurationMs = &ms
	}

	return &run, nil
}
