package db

import (
	"errors"  // Error classification
	"strings" // Driver message matching

	"gorm.io/gorm" // GORM ORM library
)

// IsDuplicate reports a unique constraint violation from MySQL or SQLite
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true // Translated by gorm (TranslateError)
	}
	msg := err.Error() // Untranslated driver errors
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint failed")
}
