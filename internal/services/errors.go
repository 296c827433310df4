package services

import (
	"errors"

	"github.com/sbilibin2017/gw-book-platform/internal/models"
)

// Error variables
var (
	ErrUserAlreadyExists  = errors.New("username or email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrBookNotFound       = errors.New("book not found")
	ErrForbidden          = errors.New("unauthorized access")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidCategory    = models.ErrInvalidCategory
)
