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

const userColumns = `user_id, username, email, password_hash, bio, profile_picture, created_at, updated_at`

// UserReadRepository handles user read operations.
// Inside a request transaction it reads through that transaction.
type UserReadRepository struct {
	db       *sqlx.DB
	txGetter TxGetter
}

func NewUserReadRepository(db *sqlx.DB, txGetter TxGetter) *UserReadRepository {
	return &UserReadRepository{db: db, txGetter: txGetter}
}

// GetByID returns the user with the given id, or nil when there is none.
func (r *UserReadRepository) GetByID(ctx context.Context, userID uuid.UUID) (*models.UserDB, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`
	return r.getOne(ctx, query, userID)
}

// GetByUsernameOrEmail returns the user whose username or email equals identifier, or nil.
func (r *UserReadRepository) GetByUsernameOrEmail(ctx context.Context, identifier string) (*models.UserDB, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE username = $1 OR email = $1
		ORDER BY created_at
		LIMIT 1
	`
	return r.getOne(ctx, query, identifier)
}

// ExistsByUsernameOrEmail reports whether either the username or the email is taken.
func (r *UserReadRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)`

	var exists bool
	err := sqlx.GetContext(ctx, executor(ctx, r.db, r.txGetter), &exists, query, username, email)

	logger.Log.Debugw("db query",
		"query", oneLine(query),
		"args", []any{username, email},
		"result", exists,
		"error", err,
	)

	return exists, err
}

func (r *UserReadRepository) getOne(ctx context.Context, query string, args ...any) (*models.UserDB, error) {
	var user models.UserDB
	err := sqlx.GetContext(ctx, executor(ctx, r.db, r.txGetter), &user, query, args...)

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
	return &user, nil
}

// UserWriteRepository handles user write operations
type UserWriteRepository struct {
	db       *sqlx.DB
	txGetter TxGetter
}

func NewUserWriteRepository(db *sqlx.DB, txGetter TxGetter) *UserWriteRepository {
	return &UserWriteRepository{db: db, txGetter: txGetter}
}

// Save inserts a new user and fills in its timestamps.
// A taken username or email yields ErrDuplicate.
func (r *UserWriteRepository) Save(ctx context.Context, user *models.UserDB) error {
	const query = `
		INSERT INTO users (user_id, username, email, password_hash, bio, profile_picture, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	if user.UserID == uuid.Nil {
		user.UserID = uuid.New()
	}

	row := executor(ctx, r.db, r.txGetter).QueryRowxContext(ctx, query,
		user.UserID, user.Username, user.Email, user.PasswordHash, user.Bio, user.ProfilePicture)
	err := row.Scan(&user.CreatedAt, &user.UpdatedAt)

	// password hash stays out of the log
	logger.Log.Debugw("db query",
		"query", oneLine(query),
		"args", []any{user.UserID, user.Username, user.Email},
		"error", err,
	)

	return mapPgError(err)
}

// UpdateProfile sets bio and profile picture and returns the updated user, or nil when the user is gone.
func (r *UserWriteRepository) UpdateProfile(ctx context.Context, userID uuid.UUID, bio, profilePicture string) (*models.UserDB, error) {
	const query = `
		UPDATE users
		SET bio = $2, profile_picture = $3, updated_at = NOW()
		WHERE user_id = $1
		RETURNING ` + userColumns
	return r.updateOne(ctx, query, userID, bio, profilePicture)
}

// UpdateProfilePicture sets only the profile picture.
func (r *UserWriteRepository) UpdateProfilePicture(ctx context.Context, userID uuid.UUID, profilePicture string) (*models.UserDB, error) {
	const query = `
		UPDATE users
		SET profile_picture = $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING ` + userColumns
	return r.updateOne(ctx, query, userID, profilePicture)
}

func (r *UserWriteRepository) updateOne(ctx context.Context, query string, args ...any) (*models.UserDB, error) {
	var user models.UserDB
	err := sqlx.GetContext(ctx, executor(ctx, r.db, r.txGetter), &user, query, args...)

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
	return &user, nil
}
