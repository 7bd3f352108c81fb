package postgres

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/jwalitptl/hmis-api/internal/repository"
)

const (
	codeUniqueViolation    = "23505"
	codeExclusionViolation = "23P01"
)

// translateError maps driver errors from either lib/pq or pgx onto the
// repository sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}

	var code, constraint string
	var pqErr *pq.Error
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pqErr):
		code, constraint = string(pqErr.Code), pqErr.Constraint
	case errors.As(err, &pgErr):
		code, constraint = pgErr.Code, pgErr.ConstraintName
	default:
		return err
	}

	switch code {
	case codeUniqueViolation:
		return repository.Duplicate(constraint)
	case codeExclusionViolation:
		return &repository.ConstraintError{Constraint: constraint, Err: repository.ErrOverlap}
	}
	return err
}
