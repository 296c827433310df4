package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultCoverImage is used when a book is published without a cover.
const DefaultCoverImage = "/uploads/default-cover.svg"

// BookDB represents a book row in the database
type BookDB struct {
	BookID        uuid.UUID `json:"id" db:"book_id"`                    // Primary key
	AuthorID      uuid.UUID `json:"author_id" db:"author_id"`           // Owning user
	Title         string    `json:"title" db:"title"`                   // Book title
	PublisherName string    `json:"publisher_name" db:"publisher_name"` // Publisher
	Description   string    `json:"description" db:"description"`       // Free text description
	Category      Category  `json:"category" db:"category"`             // One of Categories
	CoverImage    string    `json:"cover_image" db:"cover_image"`       // Root-relative cover path
	BookFile      string    `json:"book_file" db:"book_file"`           // Root-relative book file path
	Downloads     int64     `json:"downloads" db:"downloads"`           // Download counter
	CreatedAt     time.Time `json:"created_at" db:"created_at"`         // Creation timestamp
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`         // Last update timestamp
}

// OwnedBy reports whether userID owns the book.
func (b *BookDB) OwnedBy(userID uuid.UUID) bool {
	return b != nil && userID != uuid.Nil && b.AuthorID == userID
}

// BookWithAuthor is a book joined with its owner's public fields.
type BookWithAuthor struct {
	BookDB
	AuthorUsername       string `json:"author_username" db:"author_username"`
	AuthorProfilePicture string `json:"author_profile_picture" db:"author_profile_picture"`
}

// BookInput carries the editable fields of a book.
type BookInput struct {
	Title         string
	PublisherName string
	Description   string
	Category      Category
}
