package mysql

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// notFound maps gorm's sentinel onto the domain one and passes anything else through.
func notFound(err, domainErr error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domainErr
	}
	return err
}

// isDuplicate detects unique-key violations with or without gorm's TranslateError.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint failed")
}
