package repositories

import (
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound is returned by repositories when a keyed lookup misses.
var ErrNotFound = errors.New("record not found")

// IsNotFoundError reports whether err is a repository or gorm miss.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}
