package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-book-platform/internal/jwt"
	"github.com/sbilibin2017/gw-book-platform/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSessions is an in-memory SessionManager.
type memSessions struct {
	mu      sync.Mutex
	tokens  *jwt.JWT
	records map[string]*models.Session
	flashes map[string]models.Flash
}

func newMemSessions(tokens *jwt.JWT) *memSessions {
	return &memSessions{
		tokens:  tokens,
		records: make(map[string]*models.Session),
		flashes: make(map[string]models.Flash),
	}
}

func (m *memSessions) Start(ctx context.Context, userID uuid.UUID) (string, *models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := &models.Session{SessionID: uuid.NewString(), UserID: userID, CreatedAt: time.Now()}
	m.records[rec.SessionID] = rec
	token, err := m.tokens.Generate(ctx, rec.SessionID)
	return token, rec, err
}

func (m *memSessions) Resolve(ctx context.Context, token string) (*models.Session, error) {
	sid, err := m.tokens.GetSessionID(ctx, token)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[sid]
	if !ok {
		return nil, errors.New("session not found")
	}
	return rec, nil
}

func (m *memSessions) Destroy(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, sessionID)
	delete(m.flashes, sessionID)
	return nil
}

func (m *memSessions) PushFlash(_ context.Context, sessionID string, flash models.Flash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flashes[sessionID] = flash
	return nil
}

func (m *memSessions) PopFlash(_ context.Context, sessionID string) (*models.Flash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.flashes[sessionID]
	if !ok {
		return nil, nil
	}
	delete(m.flashes, sessionID)
	return &f, nil
}

// memUsers is an in-memory UserGetter.
type memUsers map[uuid.UUID]*models.UserDB

func (m memUsers) GetByID(_ context.Context, id uuid.UUID) (*models.UserDB, error) {
	return m[id], nil
}

func TestSession_LogoutThenProfileRedirectsToLogin(t *testing.T) {
	tokens := jwt.New(jwt.WithSecretKey("test-secret"))
	sessions := newMemSessions(tokens)
	alice := &models.UserDB{UserID: uuid.New(), Username: "alice"}
	users := memUsers{alice.UserID: alice}

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())
		if r.Method == http.MethodPost {
			require.NoError(t, sess.Login(r.Context(), w, alice))
			http.Redirect(w, r, "/userprofile", http.StatusFound)
			return
		}
		if f := sess.PopFlash(r.Context()); f != nil {
			_, _ = w.Write([]byte(f.Message))
		}
	})
	mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, SessionFromContext(r.Context()).Logout(r.Context(), w))
		http.Redirect(w, r, "/login", http.StatusFound)
	})
	mux.Handle("/userprofile", RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("profile of " + SessionFromContext(r.Context()).User().Username))
	})))
	handler := SessionMiddleware(sessions, users, tokens)(mux)

	jar := map[string]*http.Cookie{}
	do := func(method, target string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, nil)
		for _, c := range jar {
			req.AddCookie(c)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		for _, c := range rr.Result().Cookies() {
			if c.MaxAge < 0 {
				delete(jar, c.Name)
				continue
			}
			jar[c.Name] = c
		}
		return rr
	}

	rr := do(http.MethodPost, "/login")
	assert.Equal(t, http.StatusFound, rr.Code)

	rr = do(http.MethodGet, "/userprofile")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "profile of alice", rr.Body.String())

	rr = do(http.MethodGet, "/logout")
	assert.Equal(t, "/login", rr.Header().Get("Location"))

	rr = do(http.MethodGet, "/userprofile")
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))

	rr = do(http.MethodGet, "/login")
	assert.Equal(t, "Please login to access this page", rr.Body.String())

	rr = do(http.MethodGet, "/login")
	assert.Empty(t, rr.Body.String(), "flash is shown once")
}

func TestSession_LoginRotatesSession(t *testing.T) {
	tokens := jwt.New(jwt.WithSecretKey("test-secret"))
	sessions := newMemSessions(tokens)
	user := &models.UserDB{UserID: uuid.New()}

	token, old, err := sessions.Start(context.Background(), uuid.Nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.AddCookie(&http.Cookie{Name: jwt.DefaultCookieName, Value: token})

	var sess *Session
	rr := httptest.NewRecorder()
	SessionMiddleware(sessions, memUsers{}, tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess = SessionFromContext(r.Context())
		require.NoError(t, sess.Login(r.Context(), w, user))
	})).ServeHTTP(rr, req)

	assert.True(t, sess.Authenticated())
	assert.Equal(t, user.UserID, sess.UserID())
	_, stillThere := sessions.records[old.SessionID]
	assert.False(t, stillThere)
	assert.Len(t, sessions.records, 1)
}

func TestSessionMiddleware_ResolveFailureIsAnonymous(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	manager := NewMockSessionManager(ctrl)
	users := NewMockUserGetter(ctrl)
	cookies := NewMockCookieManager(ctrl)

	cookies.EXPECT().GetTokenFromRequest(gomock.Any(), gomock.Any()).Return("stale", nil)
	manager.EXPECT().Resolve(gomock.Any(), "stale").Return(nil, errors.New("session not found"))
	cookies.EXPECT().ClearTokenCookie(gomock.Any())

	var authenticated bool
	rr := httptest.NewRecorder()
	SessionMiddleware(manager, users, cookies)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authenticated = SessionFromContext(r.Context()).Authenticated()
	})).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.False(t, authenticated)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSessionMiddleware_DeletedUserIsAnonymous(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	manager := NewMockSessionManager(ctrl)
	users := NewMockUserGetter(ctrl)
	cookies := NewMockCookieManager(ctrl)

	userID := uuid.New()
	cookies.EXPECT().GetTokenFromRequest(gomock.Any(), gomock.Any()).Return("tok", nil)
	manager.EXPECT().Resolve(gomock.Any(), "tok").Return(&models.Session{SessionID: "sid", UserID: userID}, nil)
	users.EXPECT().GetByID(gomock.Any(), userID).Return(nil, nil)

	var authenticated bool
	SessionMiddleware(manager, users, cookies)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authenticated = SessionFromContext(r.Context()).Authenticated()
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.False(t, authenticated)
}

func TestRequireAuthAPI(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	RequireAuthAPI(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/books", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, rr.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/books", nil)
	req = req.WithContext(WithSession(req.Context(), &Session{user: &models.UserDB{UserID: uuid.New()}}))
	rr = httptest.NewRecorder()
	RequireAuthAPI(next).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSession_WithoutMiddleware(t *testing.T) {
	sess := SessionFromContext(context.Background())
	assert.False(t, sess.Authenticated())
	assert.Nil(t, sess.PopFlash(context.Background()))
	assert.Error(t, sess.AddFlash(context.Background(), httptest.NewRecorder(), models.FlashOK("x")))
}
