package persistence

import (
	stderrors "errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

const uniqueViolation = "23505"

var ErrDuplicate = errors.New("record already exists")

// wrapWriteError turns a unique violation into ErrDuplicate.
func wrapWriteError(err error, msg string) error {
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return errors.Wrapf(ErrDuplicate, "%s: %s", msg, pgErr.ConstraintName)
	}
	return errors.Wrap(err, msg)
}
