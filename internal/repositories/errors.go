package repositories

import (
	"errors"

	"euphony/internal/apperr"

	"gorm.io/gorm"
)

// translate maps gorm errors onto apperr kinds. notFound is the message used
// when the record does not exist.
func translate(op string, err error, notFound string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound(op, notFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.Wrap(apperr.KindConflict, op, "record already exists", err)
	default:
		return apperr.Internal(op, err)
	}
}
