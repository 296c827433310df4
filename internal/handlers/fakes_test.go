package handlers

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-book-platform/internal/jwt"
	"github.com/sbilibin2017/gw-book-platform/internal/logger"
	"github.com/sbilibin2017/gw-book-platform/internal/middlewares"
	"github.com/sbilibin2017/gw-book-platform/internal/models"
	"github.com/sbilibin2017/gw-book-platform/internal/repositories"
	"github.com/sbilibin2017/gw-book-platform/internal/services"
	"github.com/sbilibin2017/gw-book-platform/internal/storage"
	"github.com/sbilibin2017/gw-book-platform/internal/uploads"
	"github.com/stretchr/testify/require"
)

// memUserStore implements services.UserReader and services.UserWriter.
type memUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.UserDB
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[uuid.UUID]*models.UserDB)}
}

func (s *memUserStore) GetByID(_ context.Context, id uuid.UUID) (*models.UserDB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, nil
}

func (s *memUserStore) GetByUsernameOrEmail(_ context.Context, identifier string) (*models.UserDB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == identifier || u.Email == identifier {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (s *memUserStore) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *memUserStore) Save(_ context.Context, user *models.UserDB) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == user.Username || u.Email == user.Email {
			return repositories.ErrDuplicate
		}
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	c := *user
	s.users[user.UserID] = &c
	return nil
}

func (s *memUserStore) UpdateProfile(_ context.Context, id uuid.UUID, bio, picture string) (*models.UserDB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	u.Bio, u.ProfilePicture = bio, picture
	c := *u
	return &c, nil
}

func (s *memUserStore) UpdateProfilePicture(_ context.Context, id uuid.UUID, picture string) (*models.UserDB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	u.ProfilePicture = picture
	c := *u
	return &c, nil
}

// memBookStore implements services.BookReader and services.BookWriter.
type memBookStore struct {
	mu    sync.Mutex
	users *memUserStore
	books map[uuid.UUID]*models.BookDB
	seq   int
}

func newMemBookStore(users *memUserStore) *memBookStore {
	return &memBookStore{users: users, books: make(map[uuid.UUID]*models.BookDB)}
}

func (s *memBookStore) GetByID(_ context.Context, id uuid.UUID) (*models.BookDB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.books[id]; ok {
		c := *b
		return &c, nil
	}
	return nil, nil
}

func (s *memBookStore) List(ctx context.Context, category *models.Category) ([]models.BookWithAuthor, error) {
	s.mu.Lock()
	var out []models.BookWithAuthor
	for _, b := range s.books {
		if category != nil && b.Category != *category {
			continue
		}
		out = append(out, models.BookWithAuthor{BookDB: *b})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	for i := range out {
		if u, _ := s.users.GetByID(ctx, out[i].AuthorID); u != nil {
			out[i].AuthorUsername = u.Username
			out[i].AuthorProfilePicture = u.ProfilePicture
		}
	}
	return out, nil
}

func (s *memBookStore) ListByAuthor(_ context.Context, authorID uuid.UUID) ([]models.BookDB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.BookDB
	for _, b := range s.books {
		if b.AuthorID == authorID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memBookStore) Save(_ context.Context, book *models.BookDB) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	book.CreatedAt = time.Unix(int64(s.seq), 0)
	book.UpdatedAt = book.CreatedAt
	c := *book
	s.books[book.BookID] = &c
	return nil
}

func (s *memBookStore) Update(_ context.Context, id uuid.UUID, in models.BookInput) (*models.BookDB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	if !ok {
		return nil, nil
	}
	b.Title, b.PublisherName, b.Description, b.Category = in.Title, in.PublisherName, in.Description, in.Category
	c := *b
	return &c, nil
}

func (s *memBookStore) IncrementDownloads(_ context.Context, id uuid.UUID) (*models.BookDB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	if !ok {
		return nil, nil
	}
	b.Downloads++
	c := *b
	return &c, nil
}

func (s *memBookStore) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[id]; !ok {
		return false, nil
	}
	delete(s.books, id)
	return true, nil
}

// memSessionStore implements services.SessionStore.
type memSessionStore struct {
	mu      sync.Mutex
	records map[string]models.Session
	flashes map[string]models.Flash
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{records: make(map[string]models.Session), flashes: make(map[string]models.Flash)}
}

func (s *memSessionStore) Save(_ context.Context, sess *models.Session, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[sess.SessionID] = *sess
	return nil
}

func (s *memSessionStore) Get(_ context.Context, id string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[id]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (s *memSessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	delete(s.flashes, id)
	return nil
}

func (s *memSessionStore) SetFlash(_ context.Context, id string, flash models.Flash, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flashes[id] = flash
	return nil
}

func (s *memSessionStore) PopFlash(_ context.Context, id string) (*models.Flash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flashes[id]
	if !ok {
		return nil, nil
	}
	delete(s.flashes, id)
	return &f, nil
}

// app is the full router over in-memory stores.
type app struct {
	t        *testing.T
	handler  http.Handler
	users    *memUserStore
	books    *memBookStore
	sessions *services.SessionService
	tokens   *jwt.JWT
	root     string
}

func newApp(t *testing.T) *app {
	t.Helper()

	rd, err := NewRenderer()
	require.NoError(t, err)

	users := newMemUserStore()
	books := newMemBookStore(users)
	tokens := jwt.New(jwt.WithSecretKey("test-secret"))
	sessions := services.NewSessionService(newMemSessionStore(), tokens, 24*time.Hour)
	root := t.TempDir()
	store := storage.NewLocal(root)
	require.NoError(t, uploads.Bootstrap(context.Background(), store))

	handler := NewRouter(RouterConfig{
		Log:       logger.Log,
		Renderer:  rd,
		Validator: NewValidator(),
		Auth:      services.NewAuthService(users, users),
		Books:     services.NewBookService(books, books, users, services.NewKafkaEventPublisher(nil)),
		Profiles:  services.NewProfileService(users, users),
		Uploads:   uploads.NewUploader(store),
		Files:     store,
		Sessions:  sessions,
		Users:     users,
		Cookies:   tokens,
		Health:    map[string]HealthCheck{},
	})

	return &app{t: t, handler: handler, users: users, books: books, sessions: sessions, tokens: tokens, root: root}
}

// client is a browser with a cookie jar.
type client struct {
	app *app
	jar map[string]*http.Cookie
}

func (a *app) client() *client {
	return &client{app: a, jar: make(map[string]*http.Cookie)}
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	for _, ck := range c.jar {
		req.AddCookie(ck)
	}
	rr := httptest.NewRecorder()
	c.app.handler.ServeHTTP(rr, req)
	for _, ck := range rr.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.jar, ck.Name)
			continue
		}
		c.jar[ck.Name] = ck
	}
	return rr
}

func (c *client) get(target string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (c *client) postForm(target string, form url.Values) *httptest.ResponseRecorder {
	return c.do(formRequest(http.MethodPost, target, form))
}

// follow requests the redirect target and returns the rendered page.
func (c *client) follow(rr *httptest.ResponseRecorder) string {
	c.app.t.Helper()
	require.Equal(c.app.t, http.StatusFound, rr.Code, rr.Body.String())
	return c.get(rr.Header().Get("Location")).Body.String()
}

func (c *client) register(username, email, password string) *httptest.ResponseRecorder {
	return c.postForm("/register", url.Values{
		"username":        {username},
		"email":           {email},
		"password":        {password},
		"confirmPassword": {password},
	})
}

// harness mounts a single handler behind the real session middleware.
type harness struct {
	t        *testing.T
	router   chi.Router
	users    *memUserStore
	sessions *services.SessionService
	tokens   *jwt.JWT
}

func newHarness(t *testing.T) *harness {
	users := newMemUserStore()
	tokens := jwt.New(jwt.WithSecretKey("test-secret"))
	sessions := services.NewSessionService(newMemSessionStore(), tokens, time.Hour)

	r := chi.NewRouter()
	r.Use(middlewares.SessionMiddleware(sessions, users, tokens))
	return &harness{t: t, router: r, users: users, sessions: sessions, tokens: tokens}
}

// login stores user and returns a cookie bound to a fresh session.
func (h *harness) login(user *models.UserDB) (*http.Cookie, *models.Session) {
	h.t.Helper()
	require.NoError(h.t, h.users.Save(context.Background(), user))
	token, rec, err := h.sessions.Start(context.Background(), user.UserID)
	require.NoError(h.t, err)
	return &http.Cookie{Name: jwt.DefaultCookieName, Value: token}, rec
}

func (h *harness) serve(req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	return rr
}

// flash pops the pending flash of a session.
func (h *harness) flash(rec *models.Session) string {
	h.t.Helper()
	f, err := h.sessions.PopFlash(context.Background(), rec.SessionID)
	require.NoError(h.t, err)
	if f == nil {
		return ""
	}
	return f.Message
}

func testUser(name string) *models.UserDB {
	return &models.UserDB{
		UserID:       uuid.New(),
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "$2a$10$unused",
	}
}

func mustRenderer(t *testing.T) *Renderer {
	t.Helper()
	rd, err := NewRenderer()
	require.NoError(t, err)
	return rd
}

func formRequest(method, target string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

type formFile struct {
	field, name, contentType string
	body                     []byte
}

// multipartRequest builds a multipart POST with text fields and files.
func multipartRequest(t *testing.T, target string, fields url.Values, files ...formFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, vs := range fields {
		for _, v := range vs {
			require.NoError(t, mw.WriteField(k, v))
		}
	}
	for _, f := range files {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, f.field, f.name))
		hdr.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(f.body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newGet(target string) *http.Request {
	return httptest.NewRequest(http.MethodGet, target, nil)
}

func newRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}
