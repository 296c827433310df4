package services

import (
	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-book-platform/internal/models"
)

// authorize is the single ownership check for book mutations.
func authorize(book *models.BookDB, actorID uuid.UUID) error {
	if book == nil {
		return ErrBookNotFound
	}
	if !book.OwnedBy(actorID) {
		return ErrForbidden
	}
	return nil
}
