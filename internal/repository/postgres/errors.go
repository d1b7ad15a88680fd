package postgres

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
	ierr "github.com/recruitlink/billing/internal/errors"
)

const pqUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// translate maps driver errors onto the error taxonomy. Driver text stays in the
// internal message and never reaches a hint.
func translate(err error, entity string, details map[string]any) error {
	var b *ierr.ErrorBuilder
	var mark error
	switch {
	case errors.Is(err, sql.ErrNoRows):
		b = ierr.WithError(err).WithHintf("%s not found", entity)
		mark = ierr.ErrNotFound
	case isUniqueViolation(err):
		b = ierr.WithError(err).WithHintf("%s already exists", entity)
		mark = ierr.ErrAlreadyExists
	default:
		b = ierr.WithError(err).
			WithMessagef("%s query failed", entity).
			WithHint("Database operation failed")
		mark = ierr.ErrDatabase
	}
	if len(details) > 0 {
		b = b.WithReportableDetails(details)
	}
	return b.Mark(mark)
}
