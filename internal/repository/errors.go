package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"taskflow/internal/model"
)

// notFound turns gorm's missing row error into model.ErrNotFound.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", model.ErrNotFound, fmt.Sprintf(format, args...))
	}
	return err
}
