package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-book-platform/internal/logger"
	"github.com/sbilibin2017/gw-book-platform/internal/models"
)

//go:generate mockgen -source=session.go -destination=mock_session.go -package=services

// SessionStore persists session records and their flash messages.
type SessionStore interface {
	Save(ctx context.Context, sess *models.Session, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (*models.Session, error)
	Delete(ctx context.Context, sessionID string) error
	SetFlash(ctx context.Context, sessionID string, flash models.Flash, ttl time.Duration) error
	PopFlash(ctx context.Context, sessionID string) (*models.Flash, error)
}

// TokenCodec signs session IDs into cookie tokens and back.
type TokenCodec interface {
	Generate(ctx context.Context, sessionID string) (string, error)
	GetSessionID(ctx context.Context, tokenString string) (string, error)
}

// SessionService issues, resolves and destroys sessions.
type SessionService struct {
	store  SessionStore
	tokens TokenCodec
	ttl    time.Duration
}

// NewSessionService creates a SessionService whose sessions live for ttl.
func NewSessionService(store SessionStore, tokens TokenCodec, ttl time.Duration) *SessionService {
	return &SessionService{store: store, tokens: tokens, ttl: ttl}
}

// Start creates a session for userID (uuid.Nil for an anonymous one) and returns its cookie token.
func (s *SessionService) Start(ctx context.Context, userID uuid.UUID) (string, *models.Session, error) {
	now := time.Now().UTC()
	sess := &models.Session{
		SessionID: uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	if err := s.store.Save(ctx, sess, s.ttl); err != nil {
		logger.Log.Errorw("failed to save session", "user_id", userID, "error", err)
		return "", nil, err
	}

	token, err := s.tokens.Generate(ctx, sess.SessionID)
	if err != nil {
		logger.Log.Errorw("failed to sign session token", "error", err)
		_ = s.store.Delete(ctx, sess.SessionID)
		return "", nil, err
	}

	return token, sess, nil
}

// Resolve maps a cookie token to its session record.
// Invalid tokens and missing records both yield ErrSessionNotFound.
func (s *SessionService) Resolve(ctx context.Context, token string) (*models.Session, error) {
	sessionID, err := s.tokens.GetSessionID(ctx, token)
	if err != nil {
		return nil, ErrSessionNotFound
	}

	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Destroy removes a session and any pending flash.
func (s *SessionService) Destroy(ctx context.Context, sessionID string) error {
	return s.store.Delete(ctx, sessionID)
}

// PushFlash queues a one-shot message on a session.
func (s *SessionService) PushFlash(ctx context.Context, sessionID string, flash models.Flash) error {
	return s.store.SetFlash(ctx, sessionID, flash, s.ttl)
}

// PopFlash returns the pending message, if any, and clears it.
func (s *SessionService) PopFlash(ctx context.Context, sessionID string) (*models.Flash, error) {
	return s.store.PopFlash(ctx, sessionID)
}
