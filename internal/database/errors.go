package database

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/TemirB/foodcart/internal/domain"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgNotNullViolation    = "23502"
	pgStringTooLong       = "22001"
	pgNumericOverflow     = "22003"
)

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// asValidation turns constraint violations caused by bad input into a
// domain.ValidationError. Other errors are returned unchanged.
func asValidation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgForeignKeyViolation, pgCheckViolation, pgNotNullViolation, pgStringTooLong, pgNumericOverflow:
		field := pgErr.ColumnName
		if field == "" {
			field = pgErr.ConstraintName
		}
		return &domain.ValidationError{Reason: pgErr.Message, Fields: nonEmpty(field)}
	}
	return err
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}
