package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ncruces/go-sqlite3"
)

// PostgreSQL SQLSTATE codes the store reports by name.
const (
	pgUniqueViolation = "23505"
	pgNotNull         = "23502"
	pgCheckViolation  = "23514"
)

func isDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return errors.Is(err, sqlite3.CONSTRAINT_PRIMARYKEY) || errors.Is(err, sqlite3.CONSTRAINT_UNIQUE)
}

// describe adds the SQLSTATE to PostgreSQL errors so logs say which
// constraint fired. Other errors pass through unchanged.
func describe(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return fmt.Errorf("unique violation on %s (SQLSTATE %s): %w", pgErr.ConstraintName, pgErr.Code, err)
	case pgNotNull:
		return fmt.Errorf("null value in %s (SQLSTATE %s): %w", pgErr.ColumnName, pgErr.Code, err)
	case pgCheckViolation:
		return fmt.Errorf("check violation on %s (SQLSTATE %s): %w", pgErr.ConstraintName, pgErr.Code, err)
	default:
		return fmt.Errorf("SQLSTATE %s: %w", pgErr.Code, err)
	}
}
