package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/balkashynov/champ/internal/errors"
)

// isUniqueViolation reports whether err is a unique constraint failure
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// storeErr wraps a storage failure so callers can tell it from validation errors
func storeErr(op string, err error) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	if isUniqueViolation(err) {
		return apperrors.Wrap(apperrors.CodeWriteRejected, op, err)
	}
	return apperrors.Wrap(apperrors.CodeStoreUnavailable, op, err)
}
