package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-book-platform/internal/logger"
	"github.com/sbilibin2017/gw-book-platform/internal/models"
)

// ProfileService reads and mutates user profiles.
type ProfileService struct {
	reader UserReader
	writer UserWriter
}

// NewProfileService creates a new ProfileService.
func NewProfileService(reader UserReader, writer UserWriter) *ProfileService {
	return &ProfileService{reader: reader, writer: writer}
}

// GetByID loads a user.
func (s *ProfileService) GetByID(ctx context.Context, userID uuid.UUID) (*models.UserDB, error) {
	user, err := s.reader.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdateProfile applies a new bio and/or picture URL. Empty values keep the current ones.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID uuid.UUID, bio, profilePicture string) (*models.UserDB, error) {
	current, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	newBio := current.Bio
	if bio != "" {
		newBio = models.TruncateBio(bio)
	}
	newPicture := current.ProfilePicture
	if p := strings.TrimSpace(profilePicture); p != "" {
		newPicture = p
	}

	updated, err := s.writer.UpdateProfile(ctx, userID, newBio, newPicture)
	if err != nil {
		logger.Log.Errorw("failed to update profile", "user_id", userID, "error", err)
		return nil, err
	}
	if updated == nil {
		return nil, ErrUserNotFound
	}
	return updated, nil
}

// SetProfilePicture records an uploaded picture path.
func (s *ProfileService) SetProfilePicture(ctx context.Context, userID uuid.UUID, path string) (*models.UserDB, error) {
	updated, err := s.writer.UpdateProfilePicture(ctx, userID, path)
	if err != nil {
		logger.Log.Errorw("failed to update profile picture", "user_id", userID, "error", err)
		return nil, err
	}
	if updated == nil {
		return nil, ErrUserNotFound
	}
	return updated, nil
}
