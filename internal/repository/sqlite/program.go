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

// Compile-time check that *DB implements repository.ProgramRepository.
// `var _ X = (*Y)(nil)` fails to compile the moment a method goes missing,
// instead of failing later at the first call site.
var _ repository.ProgramRepository = (*DB)(nil)

// CreateProgram inserts a new saved program.
//
// IDs are xid strings: 20 chars, URL-safe, sortable by creation time.
// The pointer receiver matters — after CreateProgram the caller's struct
// carries the generated ID and timestamps.
func (db *DB) CreateProgram(ctx context.Context, program *model.Program) error {
	program.ID = xid.New().String()

	now := time.Now()
	program.CreatedAt = now
	program.UpdatedAt = now

	// user_id is NULL for anonymous saves so the foreign key doesn't demand
	// a phantom user row.
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO programs (id, user_id, name, code, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		program.ID,
		nullable(program.UserID),
		program.Name,
		program.Code,
		program.Description,
		program.CreatedAt,
		program.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating program: %w", err)
	}

	return nil
}

// GetProgramByID retrieves a single program. sql.ErrNoRows is not a database
// problem — it's translated to the domain's NotFound so the handler can 404.
func (db *DB) GetProgramByID(ctx context.Context, id string) (*model.Program, error) {
	var (
		p      model.Program
		userID sql.NullString
	)

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, name, code, description, created_at, updated_at
		 FROM programs
		 WHERE id = ?`,
		id,
	).Scan(
		&p.ID,
		&userID,
		&p.Name,
		&p.Code,
		&p.Description,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("program", id)
		}
		return nil, fmt.Errorf("sqlite: getting program %s: %w", id, err)
	}

	p.UserID = userID.String
	return &p, nil
}

// ListPrograms retrieves programs newest-first with LIMIT/OFFSET pagination,
// optionally scoped to one owner.
func (db *DB) ListPrograms(ctx context.Context, opts repository.ListOptions) ([]model.Program, error) {
	limit, offset := clampPage(opts)

	query := `SELECT id, user_id, name, code, description, created_at, updated_at
		 FROM programs`
	args := []any{}
	if opts.UserID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, opts.UserID)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing programs: %w", err)
	}
	// rows holds a pool connection until closed — leak these and the pool
	// eventually runs dry.
	defer rows.Close()

	programs := make([]model.Program, 0, limit)
	for rows.Next() {
		var (
			p      model.Program
			userID sql.NullString
		)
		if err := rows.Scan(
			&p.ID, &userID, &p.Name, &p.Code, &p.Description,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning program row: %w", err)
		}
		p.UserID = userID.String
		programs = append(programs, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating programs: %w", err)
	}

	return programs, nil
}

// UpdateProgram modifies name, code, and description. ID, owner, and
// created_at are immutable. RowsAffected == 0 means the WHERE matched
// nothing → NotFound, without a second round-trip.
func (db *DB) UpdateProgram(ctx context.Context, program *model.Program) error {
	program.UpdatedAt = time.Now()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE programs
		 SET name = ?, code = ?, description = ?, updated_at = ?
		 WHERE id = ?`,
		program.Name,
		program.Code,
		program.Description,
		program.UpdatedAt,
		program.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating program %s: %w", program.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("program", program.ID)
	}

	return nil
}

// DeleteProgram removes a program by ID. Same RowsAffected pattern as
// UpdateProgram for detecting "not found".
func (db *DB) DeleteProgram(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM programs WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting program %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("program", id)
	}

	return nil
}

// nullable maps an empty string to SQL NULL for optional foreign keys.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// clampPage applies the default and maximum page size.
func clampPage(opts repository.ListOptions) (limit, offset int) {
	limit = opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset = opts.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
