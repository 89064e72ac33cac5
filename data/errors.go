package data

import (
	"database/sql"
	"errors"
	"strings"

	"connectrpc.com/connect"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/pitabwire/fluent/schema"
	"github.com/pitabwire/fluent/state"
)

const pgUniqueViolation = "23505"

// ErrorIsNoRows validate if supplied error is because of record missing in DB.
func ErrorIsNoRows(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, sql.ErrNoRows)
}

// ErrorIsDuplicateKey reports a unique constraint violation.
func ErrorIsDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// ErrorConvertToAPI maps storage and localisation errors onto connect error codes.
func ErrorConvertToAPI(err error) *connect.Error {
	if err == nil {
		return nil
	}

	var code connect.Code
	lower := strings.ToLower(err.Error())

	switch {
	case ErrorIsNoRows(err):
		code = connect.CodeNotFound
	case errors.Is(err, state.ErrMissingLocale):
		code = connect.CodeFailedPrecondition
	case errors.Is(err, schema.ErrClassification):
		code = connect.CodeInvalidArgument
	case ErrorIsDuplicateKey(err) || strings.Contains(lower, "duplicate key"):
		code = connect.CodeAlreadyExists
	case strings.Contains(lower, "foreign key"),
		strings.Contains(lower, "check constraint"),
		strings.Contains(lower, "not-null constraint"):
		code = connect.CodeInvalidArgument
	case strings.Contains(lower, "optimistic lock"),
		strings.Contains(lower, "deadlock"),
		strings.Contains(lower, "serialization"):
		code = connect.CodeAborted
	case strings.Contains(lower, "dial tcp"),
		strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "timeout"):
		code = connect.CodeUnavailable
	default:
		code = connect.CodeInternal
	}

	return connect.NewError(code, err)
}
