package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-book-platform/internal/logger"
	"github.com/sbilibin2017/gw-book-platform/internal/models"
)

//go:generate mockgen -source=book.go -destination=mock_book.go -package=services

// BookReader defines read operations for books.
type BookReader interface {
	GetByID(ctx context.Context, bookID uuid.UUID) (*models.BookDB, error)
	List(ctx context.Context, category *models.Category) ([]models.BookWithAuthor, error)
	ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]models.BookDB, error)
}

// BookWriter defines write operations for books.
type BookWriter interface {
	Save(ctx context.Context, book *models.BookDB) error
	Update(ctx context.Context, bookID uuid.UUID, in models.BookInput) (*models.BookDB, error)
	IncrementDownloads(ctx context.Context, bookID uuid.UUID) (*models.BookDB, error)
	Delete(ctx context.Context, bookID uuid.UUID) (bool, error)
}

// EventPublisher receives book change events.
type EventPublisher interface {
	Publish(ctx context.Context, event models.BookEvent)
}

// AfterCommitFunc defers fn until the request transaction in ctx has committed.
type AfterCommitFunc func(ctx context.Context, fn func())

// BookService implements the catalogue and ownership rules.
type BookService struct {
	reader      BookReader
	writer      BookWriter
	users       UserReader
	publisher   EventPublisher
	afterCommit AfterCommitFunc
}

// NewBookService creates a new BookService.
func NewBookService(reader BookReader, writer BookWriter, users UserReader, publisher EventPublisher) *BookService {
	return &BookService{
		reader:    reader,
		writer:    writer,
		users:     users,
		publisher: publisher,
	}
}

// WithAfterCommit makes events wait for the request transaction to commit.
// Without it events are published as soon as the change is written.
func (s *BookService) WithAfterCommit(fn AfterCommitFunc) *BookService {
	s.afterCommit = fn
	return s
}

func (s *BookService) publish(ctx context.Context, event models.BookEvent) {
	if s.afterCommit == nil {
		s.publisher.Publish(ctx, event)
		return
	}
	s.afterCommit(ctx, func() { s.publisher.Publish(ctx, event) })
}

// List returns all books newest first, optionally filtered by category.
func (s *BookService) List(ctx context.Context, category *models.Category) ([]models.BookWithAuthor, error) {
	if category != nil && !category.Valid() {
		return nil, ErrInvalidCategory
	}
	books, err := s.reader.List(ctx, category)
	if err != nil {
		logger.Log.Errorw("failed to list books", "error", err)
		return nil, err
	}
	return books, nil
}

// ListByAuthor returns the books owned by authorID.
func (s *BookService) ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]models.BookDB, error) {
	books, err := s.reader.ListByAuthor(ctx, authorID)
	if err != nil {
		logger.Log.Errorw("failed to list author books", "author_id", authorID, "error", err)
		return nil, err
	}
	return books, nil
}

// Create publishes a new book owned by authorID.
// coverImage may be empty, in which case the default cover is used.
func (s *BookService) Create(ctx context.Context, authorID uuid.UUID, in models.BookInput, coverImage, bookFile string) (*models.BookDB, error) {
	if !in.Category.Valid() {
		return nil, ErrInvalidCategory
	}

	author, err := s.users.GetByID(ctx, authorID)
	if err != nil {
		return nil, err
	}
	if author == nil {
		return nil, ErrUserNotFound
	}

	if coverImage == "" {
		coverImage = models.DefaultCoverImage
	}

	book := &models.BookDB{
		BookID:        uuid.New(),
		AuthorID:      authorID,
		Title:         strings.TrimSpace(in.Title),
		PublisherName: strings.TrimSpace(in.PublisherName),
		Description:   in.Description,
		Category:      in.Category,
		CoverImage:    coverImage,
		BookFile:      bookFile,
	}
	if err := s.writer.Save(ctx, book); err != nil {
		logger.Log.Errorw("failed to save book", "author_id", authorID, "error", err)
		return nil, err
	}

	logger.Log.Infow("book created", "book_id", book.BookID, "author_id", authorID)
	s.publish(ctx, NewBookEvent(book.BookID, authorID, models.OperationCreated))
	return book, nil
}

// Get loads a book any authenticated user may see.
func (s *BookService) Get(ctx context.Context, bookID uuid.UUID) (*models.BookDB, error) {
	book, err := s.reader.GetByID(ctx, bookID)
	if err != nil {
		logger.Log.Errorw("failed to load book", "book_id", bookID, "error", err)
		return nil, err
	}
	if book == nil {
		return nil, ErrBookNotFound
	}
	return book, nil
}

// GetOwned loads a book and checks that actorID owns it.
func (s *BookService) GetOwned(ctx context.Context, bookID, actorID uuid.UUID) (*models.BookDB, error) {
	book, err := s.reader.GetByID(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if err := authorize(book, actorID); err != nil {
		if err == ErrForbidden {
			logger.Log.Warnw("ownership check failed", "book_id", bookID, "actor_id", actorID)
		}
		return nil, err
	}
	return book, nil
}

// Update replaces the editable fields of a book owned by actorID.
func (s *BookService) Update(ctx context.Context, bookID, actorID uuid.UUID, in models.BookInput) (*models.BookDB, error) {
	if _, err := s.GetOwned(ctx, bookID, actorID); err != nil {
		return nil, err
	}
	if !in.Category.Valid() {
		return nil, ErrInvalidCategory
	}

	in.Title = strings.TrimSpace(in.Title)
	in.PublisherName = strings.TrimSpace(in.PublisherName)

	updated, err := s.writer.Update(ctx, bookID, in)
	if err != nil {
		logger.Log.Errorw("failed to update book", "book_id", bookID, "error", err)
		return nil, err
	}
	if updated == nil {
		return nil, ErrBookNotFound
	}

	s.publish(ctx, NewBookEvent(bookID, actorID, models.OperationUpdated))
	return updated, nil
}

// Delete removes a book owned by actorID.
func (s *BookService) Delete(ctx context.Context, bookID, actorID uuid.UUID) error {
	if _, err := s.GetOwned(ctx, bookID, actorID); err != nil {
		return err
	}

	deleted, err := s.writer.Delete(ctx, bookID)
	if err != nil {
		logger.Log.Errorw("failed to delete book", "book_id", bookID, "error", err)
		return err
	}
	if !deleted {
		return ErrBookNotFound
	}

	s.publish(ctx, NewBookEvent(bookID, actorID, models.OperationDeleted))
	return nil
}

// Download counts one download and returns the updated book.
// Any authenticated user may download any book.
// Callers open the stored file first so a missing file is not counted.
func (s *BookService) Download(ctx context.Context, bookID, actorID uuid.UUID) (*models.BookDB, error) {
	book, err := s.writer.IncrementDownloads(ctx, bookID)
	if err != nil {
		logger.Log.Errorw("failed to count download", "book_id", bookID, "error", err)
		return nil, err
	}
	if book == nil {
		return nil, ErrBookNotFound
	}

	s.publish(ctx, NewBookEvent(bookID, actorID, models.OperationDownloaded))
	return book, nil
}
