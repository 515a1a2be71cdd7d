package services

import (
	"errors"

	"github.com/ukydev/fuel-delivery/internal/apperr"
	"github.com/ukydev/fuel-delivery/internal/db"
)

// storeError maps persistence errors for the named entity onto the
// application error taxonomy.
func storeError(err error, entity string) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, db.ErrNotFound):
		return apperr.NotFound(entity + " not found")
	case errors.Is(err, db.ErrInvalidID):
		return apperr.InvalidInput("invalid " + entity + " id")
	default:
		return apperr.PersistenceFailure("failed to access "+entity, err)
	}
}
