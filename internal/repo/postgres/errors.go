package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	constraintOneOpenShift    = "shifts_one_open_per_user"
	constraintUserExternalID  = "users_external_id_key"
	constraintOrgRadiusCheck  = "organizations_perimeter_radius_check"
	sqlStateUniqueViolation   = "23505"
	sqlStateCheckViolation    = "23514"
	sqlStateForeignKeyViolate = "23503"
	sqlStateInvalidText       = "22P02"
)

func violates(err error, code, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code && pgErr.ConstraintName == constraint
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == sqlStateForeignKeyViolate
}

// isInvalidText reports a value postgres could not parse into the column type,
// e.g. a malformed uuid.
func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == sqlStateInvalidText
}
