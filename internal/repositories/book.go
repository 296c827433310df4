package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sbilibin2017/gw-book-platform/internal/logger"
	"github.com/sbilibin2017/gw-book-platform/internal/models"
)

const bookColumns = `book_id, author_id, title, publisher_name, description, category,
	cover_image, book_file, downloads, created_at, updated_at`

// BookWriteRepository handles book write operations
type BookWriteRepository struct {
	db       *sqlx.DB
	txGetter TxGetter
}

func NewBookWriteRepository(db *sqlx.DB, txGetter TxGetter) *BookWriteRepository {
	return &BookWriteRepository{db: db, txGetter: txGetter}
}

// Save inserts a new book and fills in its id and timestamps.
func (r *BookWriteRepository) Save(ctx context.Context, book *models.BookDB) error {
	const query = `
		INSERT INTO books (book_id, author_id, title, publisher_name, description, category,
			cover_image, book_file, downloads, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, NOW(), NOW())
		RETURNING downloads, created_at, updated_at
	`
	if book.BookID == uuid.Nil {
		book.BookID = uuid.New()
	}
	args := []any{book.BookID, book.AuthorID, book.Title, book.PublisherName, book.Description,
		book.Category, book.CoverImage, book.BookFile}

	row := executor(ctx, r.db, r.txGetter).QueryRowxContext(ctx, query, args...)
	err := row.Scan(&book.Downloads, &book.CreatedAt, &book.UpdatedAt)

	logger.Log.Debugw("db query",
		"query", oneLine(query),
		"args", args,
		"error", err,
	)

	return err
}

// Update replaces the editable fields and refreshes updated_at.
// Returns nil when the book does not exist.
func (r *BookWriteRepository) Update(ctx context.Context, bookID uuid.UUID, in models.BookInput) (*models.BookDB, error) {
	const query = `
		UPDATE books
		SET title = $2, publisher_name = $3, description = $4, category = $5, updated_at = NOW()
		WHERE book_id = $1
		RETURNING ` + bookColumns
	return r.updateOne(ctx, query, bookID, in.Title, in.PublisherName, in.Description, in.Category)
}

// IncrementDownloads bumps the counter in a single statement and returns the updated book.
// Returns nil when the book does not exist.
func (r *BookWriteRepository) IncrementDownloads(ctx context.Context, bookID uuid.UUID) (*models.BookDB, error) {
	const query = `
		UPDATE books
		SET downloads = downloads + 1, updated_at = NOW()
		WHERE book_id = $1
		RETURNING ` + bookColumns
	return r.updateOne(ctx, query, bookID)
}

// Delete removes a book. It reports whether a row was deleted.
func (r *BookWriteRepository) Delete(ctx context.Context, bookID uuid.UUID) (bool, error) {
	const query = `DELETE FROM books WHERE book_id = $1`

	res, err := executor(ctx, r.db, r.txGetter).ExecContext(ctx, query, bookID)
	var rowsAffected int64
	if res != nil {
		rowsAffected, _ = res.RowsAffected()
	}

	logger.Log.Debugw("db query",
		"query", oneLine(query),
		"args", []any{bookID},
		"result", rowsAffected,
		"error", err,
	)

	return rowsAffected > 0, err
}

func (r *BookWriteRepository) updateOne(ctx context.Context, query string, args ...any) (*models.BookDB, error) {
	var book models.BookDB
	err := sqlx.GetContext(ctx, executor(ctx, r.db, r.txGetter), &book, query, args...)

	logger.Log.Debugw("db query",
		"query", oneLine(query),
		"args", args,
		"error", err,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// BookReadRepository handles book read operations.
// Inside a request transaction it reads through that transaction.
type BookReadRepository struct {
	db       *sqlx.DB
	txGetter TxGetter
}

func NewBookReadRepository(db *sqlx.DB, txGetter TxGetter) *BookReadRepository {
	return &BookReadRepository{db: db, txGetter: txGetter}
}

// GetByID returns a book, or nil when there is none.
func (r *BookReadRepository) GetByID(ctx context.Context, bookID uuid.UUID) (*models.BookDB, error) {
	const query = `SELECT ` + bookColumns + ` FROM books WHERE book_id = $1`

	var book models.BookDB
	err := sqlx.GetContext(ctx, executor(ctx, r.db, r.txGetter), &book, query, bookID)

	logger.Log.Debugw("db query",
		"query", oneLine(query),
		"args", []any{bookID},
		"error", err,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// List returns every book joined with its owner, newest first.
// A nil category lists all categories.
func (r *BookReadRepository) List(ctx context.Context, category *models.Category) ([]models.BookWithAuthor, error) {
	const query = `
		SELECT b.book_id, b.author_id, b.title, b.publisher_name, b.description, b.category,
			b.cover_image, b.book_file, b.downloads, b.created_at, b.updated_at,
			u.username AS author_username, u.profile_picture AS author_profile_picture
		FROM books b
		JOIN users u ON u.user_id = b.author_id
		WHERE ($1::VARCHAR IS NULL OR b.category = $1)
		ORDER BY b.created_at DESC
	`

	books := []models.BookWithAuthor{}
	err := sqlx.SelectContext(ctx, executor(ctx, r.db, r.txGetter), &books, query, category)

	logger.Log.Debugw("db query",
		"query", oneLine(query),
		"args", []any{category},
		"result", len(books),
		"error", err,
	)

	return books, err
}

// ListByAuthor returns the books owned by authorID, newest first.
func (r *BookReadRepository) ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]models.BookDB, error) {
	const query = `SELECT ` + bookColumns + ` FROM books WHERE author_id = $1 ORDER BY created_at DESC`

	books := []models.BookDB{}
	err := sqlx.SelectContext(ctx, executor(ctx, r.db, r.txGetter), &books, query, authorID)

	logger.Log.Debugw("db query",
		"query", oneLine(query),
		"args", []any{authorID},
		"result", len(books),
		"error", err,
	)

	return books, err
}
