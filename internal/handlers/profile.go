package handlers

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-book-platform/internal/logger"
	"github.com/sbilibin2017/gw-book-platform/internal/middlewares"
	"github.com/sbilibin2017/gw-book-platform/internal/models"
	"github.com/sbilibin2017/gw-book-platform/internal/uploads"
)

//go:generate mockgen -source=profile.go -destination=mock_profile.go -package=handlers

// ProfileManager reads and updates the current user's profile.
type ProfileManager interface {
	UpdateProfile(ctx context.Context, userID uuid.UUID, bio, profilePicture string) (*models.UserDB, error)
	SetProfilePicture(ctx context.Context, userID uuid.UUID, path string) (*models.UserDB, error)
}

type profileData struct {
	Profile *models.UserView
	Books   []models.BookDB
}

// NewUserProfileHandler renders the current user's profile and books.
func NewUserProfileHandler(books BookManager, rd *Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		user := middlewares.SessionFromContext(ctx).User()

		owned, err := books.ListByAuthor(ctx, user.UserID)
		if err != nil {
			logger.Log.Errorw("failed to load profile books", "user_id", user.UserID, "error", err)
			redirectWithFlash(w, r, models.FlashErr("Error loading profile"), "/homepage")
			return
		}

		rd.Render(w, r, http.StatusOK, PageUserProfile, "User Profile", profileData{
			Profile: user.View(),
			Books:   owned,
		})
	}
}

// NewUpdateProfileHandler applies a new bio and/or picture URL.
func NewUpdateProfileHandler(svc ProfileManager, v *validator.Validate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := middlewares.SessionFromContext(ctx).UserID()

		form := parseProfileForm(r)
		if err := v.Struct(form); err != nil {
			failWithFlash(ctx, w, r, models.FlashErr(validationMessage(err)), "/userprofile")
			return
		}

		if _, err := svc.UpdateProfile(ctx, userID, form.Bio, form.ProfilePicture); err != nil {
			logger.Log.Errorw("failed to update profile", "user_id", userID, "error", err)
			failWithFlash(ctx, w, r, models.FlashErr("Update failed"), "/userprofile")
			return
		}
		redirectWithFlash(w, r, models.FlashOK("Profile updated successfully!"), "/userprofile")
	}
}

// NewUploadProfilePicHandler stores an uploaded image and makes it the profile picture.
func NewUploadProfilePicHandler(svc ProfileManager, files FileSaver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := middlewares.SessionFromContext(ctx).UserID()

		if err := uploads.ParseForm(w, r, uploads.KindProfile.MaxBytes+mb); err != nil {
			failWithFlash(ctx, w, r, uploadFlash(err, uploads.KindProfile), "/userprofile")
			return
		}
		defer r.MultipartForm.RemoveAll()

		fh, err := uploads.FormFile(r, uploads.KindProfile)
		if err != nil {
			failWithFlash(ctx, w, r, models.FlashErr("Please select an image file to upload"), "/userprofile")
			return
		}

		picture, err := files.Save(ctx, uploads.KindProfile, fh)
		if err != nil {
			failWithFlash(ctx, w, r, uploadFlash(err, uploads.KindProfile), "/userprofile")
			return
		}

		if _, err := svc.SetProfilePicture(ctx, userID, picture); err != nil {
			logger.Log.Errorw("failed to set profile picture", "user_id", userID, "error", err)
			failWithFlash(ctx, w, r, models.FlashErr("Error uploading file"), "/userprofile")
			return
		}
		redirectWithFlash(w, r, models.FlashOK("Profile picture uploaded successfully!"), "/userprofile")
	}
}
