package middlewares

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-book-platform/internal/logger"
	"github.com/sbilibin2017/gw-book-platform/internal/models"
)

//go:generate mockgen -source=session.go -destination=mock_session.go -package=middlewares

// SessionManager issues and resolves server-side sessions.
type SessionManager interface {
	Start(ctx context.Context, userID uuid.UUID) (string, *models.Session, error)
	Resolve(ctx context.Context, token string) (*models.Session, error)
	Destroy(ctx context.Context, sessionID string) error
	PushFlash(ctx context.Context, sessionID string, flash models.Flash) error
	PopFlash(ctx context.Context, sessionID string) (*models.Flash, error)
}

// UserGetter loads the user behind a session.
type UserGetter interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*models.UserDB, error)
}

// CookieManager reads and writes the session cookie.
type CookieManager interface {
	GetTokenFromRequest(ctx context.Context, r *http.Request) (string, error)
	SetTokenCookie(w http.ResponseWriter, token string)
	ClearTokenCookie(w http.ResponseWriter)
}

var errNoSessionManager = errors.New("session middleware not installed")

// Session is the per-request view of the visitor's session.
type Session struct {
	manager SessionManager
	cookies CookieManager
	record  *models.Session
	user    *models.UserDB
}

type sessionKey struct{}

// SessionFromContext returns the request session. Outside SessionMiddleware it is an empty anonymous session.
func SessionFromContext(ctx context.Context) *Session {
	if s, ok := ctx.Value(sessionKey{}).(*Session); ok {
		return s
	}
	return &Session{}
}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// User returns the authenticated user or nil.
func (s *Session) User() *models.UserDB {
	return s.user
}

// UserID returns the authenticated user's ID or uuid.Nil.
func (s *Session) UserID() uuid.UUID {
	if s.user == nil {
		return uuid.Nil
	}
	return s.user.UserID
}

// Authenticated reports whether the request carries a live identity.
func (s *Session) Authenticated() bool {
	return s.user != nil
}

// Login binds user to a fresh session, destroying any previous one.
func (s *Session) Login(ctx context.Context, w http.ResponseWriter, user *models.UserDB) error {
	if s.manager == nil {
		return errNoSessionManager
	}
	if s.record != nil {
		if err := s.manager.Destroy(ctx, s.record.SessionID); err != nil {
			logger.Log.Warnw("failed to destroy previous session", "session_id", s.record.SessionID, "error", err)
		}
	}

	token, record, err := s.manager.Start(ctx, user.UserID)
	if err != nil {
		return err
	}
	s.cookies.SetTokenCookie(w, token)
	s.record = record
	s.user = user

	logger.Log.Infow("user logged in", "user_id", user.UserID)
	return nil
}

// Logout destroys the session and clears the cookie.
func (s *Session) Logout(ctx context.Context, w http.ResponseWriter) error {
	if s.manager == nil {
		return errNoSessionManager
	}
	var err error
	if s.record != nil {
		err = s.manager.Destroy(ctx, s.record.SessionID)
	}
	s.cookies.ClearTokenCookie(w)
	s.record = nil
	s.user = nil
	return err
}

// AddFlash queues a message for the next rendered page.
// Visitors without a session get an anonymous one to carry it.
func (s *Session) AddFlash(ctx context.Context, w http.ResponseWriter, flash models.Flash) error {
	if s.manager == nil {
		return errNoSessionManager
	}
	if s.record == nil {
		token, record, err := s.manager.Start(ctx, uuid.Nil)
		if err != nil {
			return err
		}
		s.cookies.SetTokenCookie(w, token)
		s.record = record
	}
	return s.manager.PushFlash(ctx, s.record.SessionID, flash)
}

// PopFlash returns and clears the pending message, if any.
func (s *Session) PopFlash(ctx context.Context) *models.Flash {
	if s.manager == nil || s.record == nil {
		return nil
	}
	flash, err := s.manager.PopFlash(ctx, s.record.SessionID)
	if err != nil {
		logger.Log.Errorw("failed to pop flash", "session_id", s.record.SessionID, "error", err)
		return nil
	}
	return flash
}

// SessionMiddleware resolves the session cookie and loads the user on every request.
// Resolution failures leave the request anonymous.
func SessionMiddleware(manager SessionManager, users UserGetter, cookies CookieManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sess := &Session{manager: manager, cookies: cookies}

			if token, err := cookies.GetTokenFromRequest(ctx, r); err == nil {
				record, err := manager.Resolve(ctx, token)
				switch {
				case err != nil:
					logger.Log.Debugw("session not resolved", "error", err)
					cookies.ClearTokenCookie(w)
				case record.Anonymous():
					sess.record = record
				default:
					sess.record = record
					user, err := users.GetByID(ctx, record.UserID)
					if err != nil {
						logger.Log.Errorw("failed to load session user", "user_id", record.UserID, "error", err)
					}
					sess.user = user
				}
			}

			next.ServeHTTP(w, r.WithContext(WithSession(ctx, sess)))
		})
	}
}

// RequireAuth redirects visitors without an identity to the login page.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess := SessionFromContext(ctx)
		if !sess.Authenticated() {
			if err := sess.AddFlash(ctx, w, models.FlashErr("Please login to access this page")); err != nil {
				logger.Log.Errorw("failed to set flash", "error", err)
			}
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuthAPI answers 401 with a JSON body for visitors without an identity.
func RequireAuthAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !SessionFromContext(r.Context()).Authenticated() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
