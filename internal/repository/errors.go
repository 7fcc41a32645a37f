package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/stemsi/mocktest-backend/internal/model"
)

// wrapErr maps driver errors onto domain errors. Domain errors pass through.
func wrapErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return model.ErrNotFound
	case errors.Is(err, model.ErrNotFound),
		errors.Is(err, model.ErrAttemptClosed),
		errors.Is(err, model.ErrAttemptInProgress),
		errors.Is(err, model.ErrValidation):
		return err
	}
	var se *model.StoreError
	if errors.As(err, &se) {
		return err
	}
	return model.NewStoreError(op, err)
}
