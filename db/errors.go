package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"Gin_postgres_redis_equipment_loans/engine"
	"Gin_postgres_redis_equipment_loans/lifecycle"
)

// Postgres SQLSTATE codes the store classifies.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
	codeInvalidText          = "22P02"
)

// translateErr maps driver errors onto the engine's sentinels. Lock waits
// that time out, deadlocks and serialization failures all become
// lifecycle.ErrConflict so the engine retries them.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, lifecycle.ErrNotFound) || errors.Is(err, lifecycle.ErrConflict) || errors.Is(err, engine.ErrDuplicate) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %w", lifecycle.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return fmt.Errorf("%w: %w", lifecycle.ErrConflict, err)
	case codeUniqueViolation:
		return fmt.Errorf("%w: %s", engine.ErrDuplicate, pgErr.ConstraintName)
	case codeInvalidText:
		// a malformed uuid can never match a row
		return fmt.Errorf("%w: %w", lifecycle.ErrNotFound, err)
	}
	return err
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, lifecycle.ErrNotFound)
}
