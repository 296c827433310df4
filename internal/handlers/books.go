package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-book-platform/internal/logger"
	"github.com/sbilibin2017/gw-book-platform/internal/middlewares"
	"github.com/sbilibin2017/gw-book-platform/internal/models"
	"github.com/sbilibin2017/gw-book-platform/internal/services"
	"github.com/sbilibin2017/gw-book-platform/internal/storage"
	"github.com/sbilibin2017/gw-book-platform/internal/uploads"
)

//go:generate mockgen -source=books.go -destination=mock_books.go -package=handlers

// BookManager is the book catalogue with its ownership rules.
type BookManager interface {
	List(ctx context.Context, category *models.Category) ([]models.BookWithAuthor, error)
	ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]models.BookDB, error)
	Create(ctx context.Context, authorID uuid.UUID, in models.BookInput, coverImage, bookFile string) (*models.BookDB, error)
	Get(ctx context.Context, bookID uuid.UUID) (*models.BookDB, error)
	GetOwned(ctx context.Context, bookID, actorID uuid.UUID) (*models.BookDB, error)
	Update(ctx context.Context, bookID, actorID uuid.UUID, in models.BookInput) (*models.BookDB, error)
	Delete(ctx context.Context, bookID, actorID uuid.UUID) error
	Download(ctx context.Context, bookID, actorID uuid.UUID) (*models.BookDB, error)
}

// FileSaver stores validated uploads.
type FileSaver interface {
	Save(ctx context.Context, kind uploads.Kind, fh *multipart.FileHeader) (string, error)
}

// FileOpener reads stored files.
type FileOpener interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

type homeData struct {
	Books      []models.BookWithAuthor
	Categories []models.Category
	Selected   string
}

type bookFormData struct {
	Form       BookForm
	Categories []models.Category
	Action     string
	Create     bool
	Error      string
}

type deleteData struct {
	Book *models.BookDB
}

// NewHomepageHandler lists all books, optionally filtered by ?category=.
func NewHomepageHandler(svc BookManager, rd *Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		data := homeData{Categories: models.Categories}

		var filter *models.Category
		if raw := r.URL.Query().Get("category"); raw != "" {
			category, err := models.ParseCategory(raw)
			if err != nil {
				redirectWithFlash(w, r, models.FlashErr("Unknown category"), "/homepage")
				return
			}
			filter = &category
			data.Selected = category.String()
		}

		books, err := svc.List(ctx, filter)
		if err != nil {
			logger.Log.Errorw("failed to load homepage", "error", err)
			rd.Render(w, r, http.StatusInternalServerError, PageHomepage, "Homepage", homeData{Categories: models.Categories})
			return
		}
		data.Books = books
		rd.Render(w, r, http.StatusOK, PageHomepage, "Homepage", data)
	}
}

// NewCreateBookPageHandler renders the publish form.
func NewCreateBookPageHandler(rd *Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rd.Render(w, r, http.StatusOK, PageBookForm, "Create Book", bookFormData{
			Categories: models.Categories,
			Action:     "/createbook",
			Create:     true,
		})
	}
}

// NewCreateBookHandler publishes a book from a multipart form with a required book file and an optional cover.
func NewCreateBookHandler(svc BookManager, files FileSaver, v *validator.Validate, rd *Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := middlewares.SessionFromContext(ctx).UserID()

		if err := uploads.ParseForm(w, r, uploads.KindBook.MaxBytes+uploads.KindCover.MaxBytes+mb); err != nil {
			failWithFlash(ctx, w, r, uploadFlash(err, uploads.KindBook), "/createbook")
			return
		}
		defer r.MultipartForm.RemoveAll()

		form := parseBookForm(r)
		if err := v.Struct(form); err != nil {
			middlewares.AbortTx(ctx)
			rd.Render(w, r, http.StatusBadRequest, PageBookForm, "Create Book", bookFormData{
				Form:       form,
				Categories: models.Categories,
				Action:     "/createbook",
				Create:     true,
				Error:      validationMessage(err),
			})
			return
		}

		bookHeader, err := uploads.FormFile(r, uploads.KindBook)
		if err != nil {
			failWithFlash(ctx, w, r, models.FlashErr("Please upload a book file"), "/createbook")
			return
		}
		bookFile, err := files.Save(ctx, uploads.KindBook, bookHeader)
		if err != nil {
			failWithFlash(ctx, w, r, uploadFlash(err, uploads.KindBook), "/createbook")
			return
		}

		var coverImage string
		if coverHeader, err := uploads.FormFile(r, uploads.KindCover); err == nil {
			if coverImage, err = files.Save(ctx, uploads.KindCover, coverHeader); err != nil {
				failWithFlash(ctx, w, r, uploadFlash(err, uploads.KindCover), "/createbook")
				return
			}
		}

		if _, err := svc.Create(ctx, userID, form.Input(), coverImage, bookFile); err != nil {
			logger.Log.Errorw("failed to create book", "user_id", userID, "error", err)
			failWithFlash(ctx, w, r, models.FlashErr("Error publishing book"), "/createbook")
			return
		}

		redirectWithFlash(w, r, models.FlashOK("Book published successfully!"), "/userprofile")
	}
}

// NewEditBookPageHandler renders the edit form for a book the user owns.
func NewEditBookPageHandler(svc BookManager, rd *Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		book, ok := ownedBook(w, r, svc)
		if !ok {
			return
		}
		rd.Render(w, r, http.StatusOK, PageBookForm, "Edit Book", bookFormData{
			Form:       bookFormOf(book),
			Categories: models.Categories,
			Action:     "/editbook/" + book.BookID.String(),
		})
	}
}

// NewEditBookHandler updates a book the user owns.
func NewEditBookHandler(svc BookManager, v *validator.Validate, rd *Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		bookID, ok := bookIDParam(w, r)
		if !ok {
			return
		}
		userID := middlewares.SessionFromContext(ctx).UserID()

		form := parseBookForm(r)
		if err := v.Struct(form); err != nil {
			if _, ok := ownedBook(w, r, svc); !ok {
				return
			}
			middlewares.AbortTx(ctx)
			rd.Render(w, r, http.StatusBadRequest, PageBookForm, "Edit Book", bookFormData{
				Form:       form,
				Categories: models.Categories,
				Action:     "/editbook/" + bookID.String(),
				Error:      validationMessage(err),
			})
			return
		}

		if _, err := svc.Update(ctx, bookID, userID, form.Input()); err != nil {
			bookErrorRedirect(ctx, w, r, err, "Error updating book", "/editbook/"+bookID.String())
			return
		}
		redirectWithFlash(w, r, models.FlashOK("Book updated successfully!"), "/userprofile")
	}
}

// NewDeleteBookPageHandler renders the delete confirmation for a book the user owns.
func NewDeleteBookPageHandler(svc BookManager, rd *Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		book, ok := ownedBook(w, r, svc)
		if !ok {
			return
		}
		rd.Render(w, r, http.StatusOK, PageDeleteBook, "Delete Book", deleteData{Book: book})
	}
}

// NewDeleteBookHandler deletes a book the user owns.
func NewDeleteBookHandler(svc BookManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		bookID, ok := bookIDParam(w, r)
		if !ok {
			return
		}

		if err := svc.Delete(ctx, bookID, middlewares.SessionFromContext(ctx).UserID()); err != nil {
			bookErrorRedirect(ctx, w, r, err, "Error deleting book", "/userprofile")
			return
		}
		redirectWithFlash(w, r, models.FlashOK("Book deleted successfully!"), "/userprofile")
	}
}

// NewDownloadHandler streams the book file as an attachment.
// The download is counted only once the stored file has been opened.
func NewDownloadHandler(svc BookManager, files FileOpener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		bookID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			redirectWithFlash(w, r, models.FlashErr("Book not found"), "/homepage")
			return
		}

		book, err := svc.Get(ctx, bookID)
		if err != nil {
			downloadErrorRedirect(w, r, bookID, err)
			return
		}

		rc, err := files.Open(ctx, book.BookFile)
		if err != nil {
			logger.Log.Errorw("book file unavailable", "book_id", bookID, "key", book.BookFile, "error", err)
			redirectWithFlash(w, r, models.FlashErr("Error downloading book"), "/homepage")
			return
		}
		defer rc.Close()

		if _, err := svc.Download(ctx, bookID, middlewares.SessionFromContext(ctx).UserID()); err != nil {
			downloadErrorRedirect(w, r, bookID, err)
			return
		}

		name := path.Base(book.BookFile)
		w.Header().Set("Content-Type", contentTypeOf(name))
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
		if _, err := io.Copy(w, rc); err != nil {
			logger.Log.Warnw("download interrupted", "book_id", bookID, "error", err)
		}
	}
}

func downloadErrorRedirect(w http.ResponseWriter, r *http.Request, bookID uuid.UUID, err error) {
	if errors.Is(err, services.ErrBookNotFound) {
		redirectWithFlash(w, r, models.FlashErr("Book not found"), "/homepage")
		return
	}
	logger.Log.Errorw("download failed", "book_id", bookID, "error", err)
	redirectWithFlash(w, r, models.FlashErr("Error downloading book"), "/homepage")
}

// NewUploadsHandler serves stored files under /uploads/.
func NewUploadsHandler(files FileOpener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := storage.CleanKey(r.URL.Path)
		if err != nil || !strings.HasPrefix(key, "uploads/") {
			http.NotFound(w, r)
			return
		}

		rc, err := files.Open(r.Context(), key)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				logger.Log.Errorw("failed to open stored file", "key", key, "error", err)
			}
			http.NotFound(w, r)
			return
		}
		defer rc.Close()

		w.Header().Set("Content-Type", contentTypeOf(key))
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		_, _ = io.Copy(w, rc)
	}
}

func contentTypeOf(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func bookIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		failWithFlash(r.Context(), w, r, models.FlashErr("Book not found"), "/userprofile")
		return uuid.Nil, false
	}
	return id, true
}

// ownedBook loads the {id} book for the current user, redirecting on any failure.
func ownedBook(w http.ResponseWriter, r *http.Request, svc BookManager) (*models.BookDB, bool) {
	ctx := r.Context()
	bookID, ok := bookIDParam(w, r)
	if !ok {
		return nil, false
	}
	book, err := svc.GetOwned(ctx, bookID, middlewares.SessionFromContext(ctx).UserID())
	if err != nil {
		bookErrorRedirect(ctx, w, r, err, "Error loading book", "/userprofile")
		return nil, false
	}
	return book, true
}

func bookErrorRedirect(ctx context.Context, w http.ResponseWriter, r *http.Request, err error, fallback, target string) {
	switch {
	case errors.Is(err, services.ErrBookNotFound):
		failWithFlash(ctx, w, r, models.FlashErr("Book not found"), "/userprofile")
	case errors.Is(err, services.ErrForbidden):
		failWithFlash(ctx, w, r, models.FlashErr("Unauthorized access"), "/userprofile")
	case errors.Is(err, services.ErrInvalidCategory):
		failWithFlash(ctx, w, r, models.FlashErr("Please choose a valid category"), target)
	default:
		logger.Log.Errorw("book operation failed", "error", err)
		failWithFlash(ctx, w, r, models.FlashErr(fallback), target)
	}
}

func uploadFlash(err error, kind uploads.Kind) models.Flash {
	switch {
	case errors.Is(err, uploads.ErrFileTooLarge):
		return models.FlashErr(fmt.Sprintf("File too large. Maximum size is %dMB.", kind.MaxMB()))
	case errors.Is(err, uploads.ErrUnsupportedType):
		return models.FlashErr("Images only (jpeg, jpg, png, gif, webp)!")
	case errors.Is(err, uploads.ErrMissingFile):
		return models.FlashErr("Please select a file to upload")
	default:
		logger.Log.Errorw("upload failed", "field", kind.Field, "error", err)
		return models.FlashErr("Error uploading file")
	}
}

const mb = 1 << 20
