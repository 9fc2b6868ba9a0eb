package persistence

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iota-uz/personnel-sync/modules/personnel/domain/provisioning"
)

func mapPgError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return provisioning.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return fmt.Errorf("%w: %s", provisioning.ErrVersionConflict, pgErr.ConstraintName)
	case "40001": // serialization_failure
		return fmt.Errorf("%w: serialization failure", provisioning.ErrVersionConflict)
	case "23514": // check_violation
		return fmt.Errorf("invalid provisioning record (%s): %w", pgErr.ConstraintName, err)
	default:
		return fmt.Errorf("database error (%s): %w", pgErr.Code, err)
	}
}
