package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-book-platform/internal/logger"
	"github.com/sbilibin2017/gw-book-platform/internal/models"
)

// BookResponse is a catalogue entry
// swagger:model BookResponse
type BookResponse struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	PublisherName  string    `json:"publisher_name"`
	Description    string    `json:"description"`
	Category       string    `json:"category"`
	CoverImage     string    `json:"cover_image"`
	Downloads      int64     `json:"downloads"`
	AuthorID       uuid.UUID `json:"author_id"`
	AuthorUsername string    `json:"author_username"`
	CreatedAt      time.Time `json:"created_at"`
}

// BooksResponse is the catalogue listing
// swagger:model BooksResponse
type BooksResponse struct {
	Books []BookResponse `json:"books"`
}

// ErrorResponse represents an API error
// swagger:model ErrorResponse
type ErrorResponse struct {
	// Error message
	// default: unauthorized
	Error string `json:"error"`
}

// NewBooksAPIHandler returns the catalogue as JSON.
// @Summary List books
// @Description Returns all published books, newest first, optionally filtered by category
// @Tags books
// @Produce json
// @Param category query string false "Category filter" Enums(Business, Fiction, Non-Fiction, Technology, Science, Arts, Biography, History, Self-Help, Other)
// @Success 200 {object} handlers.BooksResponse "Books"
// @Failure 400 {object} handlers.ErrorResponse "Unknown category"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /books [get]
// @Security SessionCookie
func NewBooksAPIHandler(svc BookManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		var filter *models.Category
		if raw := r.URL.Query().Get("category"); raw != "" {
			category, err := models.ParseCategory(raw)
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(ErrorResponse{Error: "unknown category"})
				return
			}
			filter = &category
		}

		books, err := svc.List(r.Context(), filter)
		if err != nil {
			logger.Log.Errorw("internal server error", "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(ErrorResponse{Error: "Internal server error"})
			return
		}

		resp := BooksResponse{Books: make([]BookResponse, 0, len(books))}
		for _, b := range books {
			resp.Books = append(resp.Books, BookResponse{
				ID:             b.BookID,
				Title:          b.Title,
				PublisherName:  b.PublisherName,
				Description:    b.Description,
				Category:       b.Category.String(),
				CoverImage:     b.CoverImage,
				Downloads:      b.Downloads,
				AuthorID:       b.AuthorID,
				AuthorUsername: b.AuthorUsername,
				CreatedAt:      b.CreatedAt,
			})
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}
}
