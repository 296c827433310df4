package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-book-platform/internal/logger"
	"github.com/sbilibin2017/gw-book-platform/internal/models"
	"github.com/sbilibin2017/gw-book-platform/internal/repositories"
	"golang.org/x/crypto/bcrypt"
)

//go:generate mockgen -source=auth.go -destination=mock_auth.go -package=services

// UserReader defines read-only operations for users.
type UserReader interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*models.UserDB, error)
	GetByUsernameOrEmail(ctx context.Context, identifier string) (*models.UserDB, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
}

// UserWriter defines write operations for users.
type UserWriter interface {
	Save(ctx context.Context, user *models.UserDB) error
	UpdateProfile(ctx context.Context, userID uuid.UUID, bio, profilePicture string) (*models.UserDB, error)
	UpdateProfilePicture(ctx context.Context, userID uuid.UUID, profilePicture string) (*models.UserDB, error)
}

// dummyHash is compared against when the identifier is unknown,
// so both failure paths do the same bcrypt work.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password"), bcrypt.DefaultCost)

// AuthService handles registration and credential checks.
type AuthService struct {
	reader UserReader
	writer UserWriter
}

// NewAuthService creates a new AuthService instance.
func NewAuthService(reader UserReader, writer UserWriter) *AuthService {
	return &AuthService{
		reader: reader,
		writer: writer,
	}
}

// Register creates a new user with a bcrypt-hashed password.
func (svc *AuthService) Register(ctx context.Context, username, email, password string) (*models.UserDB, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	exists, err := svc.reader.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		logger.Log.Errorw("failed to check user exists", "error", err)
		return nil, err
	}
	if exists {
		logger.Log.Infow("user already exists", "username", username, "email", email)
		return nil, ErrUserAlreadyExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Log.Errorw("failed to hash password", "error", err)
		return nil, err
	}

	user := &models.UserDB{
		UserID:       uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
	}
	if err := svc.writer.Save(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, ErrUserAlreadyExists
		}
		logger.Log.Errorw("failed to save user", "error", err)
		return nil, err
	}

	logger.Log.Infow("user registered", "user_id", user.UserID, "username", user.Username)
	return user, nil
}

// Login verifies an identifier (username or email) and password.
// Unknown identifiers and wrong passwords both yield ErrInvalidCredentials.
func (svc *AuthService) Login(ctx context.Context, identifier, password string) (*models.UserDB, error) {
	user, err := svc.reader.GetByUsernameOrEmail(ctx, strings.TrimSpace(identifier))
	if err != nil {
		logger.Log.Errorw("failed to get user", "error", err)
		return nil, err
	}
	if user == nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		logger.Log.Infow("login failed", "identifier", identifier)
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		logger.Log.Infow("login failed", "identifier", identifier)
		return nil, ErrInvalidCredentials
	}

	return user, nil
}
