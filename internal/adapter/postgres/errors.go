package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

// MapError converts pgx/pgconn errors to domain errors. id is whatever
// identifies the row for the message: a natural key, a diff id, a uuid.
// context.DeadlineExceeded and context.Canceled are NOT mapped; they pass through.
func MapError(err error, entity, id string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s %s: %w", entity, id, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s %s: %w", entity, id, domain.ErrAlreadyExists)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
		case "23514": // check_violation
			return fmt.Errorf("%s %s: %w", entity, id, domain.ErrValidation)
		case "55P03": // lock_not_available, raised by lock_timeout
			return fmt.Errorf("%s %s: %w: %w", entity, id, domain.ErrDependency, err)
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%s %s: %w: %w", entity, id, domain.ErrConflict, err)
		}
		return fmt.Errorf("%s %s: %w", entity, id, err)
	}

	if pgconn.SafeToRetry(err) || isConnectError(err) {
		return fmt.Errorf("%s %s: %w: %w", entity, id, domain.ErrDependency, err)
	}

	return fmt.Errorf("%s %s: %w", entity, id, err)
}

func isConnectError(err error) bool {
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}
