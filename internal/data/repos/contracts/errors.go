package contracts

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrDuplicate is returned when an insert hits a unique index, e.g. a second
// active job for the same owner or a second Generation for one Transcription.
var ErrDuplicate = errors.New("duplicate job")

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func translate(err error) error {
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}
