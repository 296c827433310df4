package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultProfilePicture is shown for users who never set a picture.
const DefaultProfilePicture = "/uploads/default-avatar.svg"

// MaxBioLength is the maximum number of characters kept from a submitted bio.
const MaxBioLength = 50

// UserDB represents a user record in the database
type UserDB struct {
	UserID         uuid.UUID `json:"id" db:"user_id"`                      // Primary key
	Username       string    `json:"username" db:"username"`               // Unique username
	Email          string    `json:"email" db:"email"`                     // Unique email
	PasswordHash   string    `json:"-" db:"password_hash"`                 // bcrypt hash, never rendered
	Bio            string    `json:"bio" db:"bio"`                         // Short bio
	ProfilePicture string    `json:"profile_picture" db:"profile_picture"` // URL or stored file path
	CreatedAt      time.Time `json:"created_at" db:"created_at"`           // Creation timestamp
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`           // Last update timestamp
}

// UserView is the user as templates and API responses see it.
type UserView struct {
	UserID         uuid.UUID `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	Bio            string    `json:"bio"`
	ProfilePicture string    `json:"profile_picture"`
	CreatedAt      time.Time `json:"created_at"`
}

// View strips the password hash and fills in the default picture.
func (u *UserDB) View() *UserView {
	if u == nil {
		return nil
	}
	picture := u.ProfilePicture
	if picture == "" {
		picture = DefaultProfilePicture
	}
	return &UserView{
		UserID:         u.UserID,
		Username:       u.Username,
		Email:          u.Email,
		Bio:            u.Bio,
		ProfilePicture: picture,
		CreatedAt:      u.CreatedAt,
	}
}

// TruncateBio cuts a bio down to MaxBioLength characters.
func TruncateBio(bio string) string {
	r := []rune(bio)
	if len(r) <= MaxBioLength {
		return bio
	}
	return string(r[:MaxBioLength])
}
