package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/sbilibin2017/gw-book-platform/internal/middlewares"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// RouterConfig wires the HTTP surface to its collaborators.
type RouterConfig struct {
	Log       *zap.SugaredLogger
	Renderer  *Renderer
	Validator *validator.Validate

	Auth     Authenticator
	Books    BookManager
	Profiles ProfileManager
	Uploads  FileSaver
	Files    FileOpener

	Sessions middlewares.SessionManager
	Users    middlewares.UserGetter
	Cookies  middlewares.CookieManager

	// DB wraps mutating routes in a transaction when set.
	DB *sqlx.DB

	Health     map[string]HealthCheck
	SwaggerURL string
}

// NewRouter builds the application router.
func NewRouter(cfg RouterConfig) http.Handler {
	tx := func(h http.Handler) http.Handler { return h }
	if cfg.DB != nil {
		tx = middlewares.TxMiddleware(cfg.DB)
	}
	rd := cfg.Renderer
	v := cfg.Validator

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(middlewares.LoggingMiddleware(cfg.Log))
	r.Use(middlewares.SessionMiddleware(cfg.Sessions, cfg.Users, cfg.Cookies))
	r.Use(middlewares.RecoverMiddleware)

	// Public routes
	r.Get("/", NewIndexHandler())
	r.Get("/login", NewLoginPageHandler(rd))
	r.Post("/login", NewLoginHandler(cfg.Auth))
	r.Get("/register", NewRegisterPageHandler(rd))
	r.With(tx).Post("/register", NewRegisterHandler(cfg.Auth, v, rd))
	r.Get("/logout", NewLogoutHandler())
	r.Get("/uploads/*", NewUploadsHandler(cfg.Files))
	r.Get("/health", NewHealthHandler(cfg.Health))
	if cfg.SwaggerURL != "" {
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL(cfg.SwaggerURL)))
	}

	// Protected pages
	r.Group(func(r chi.Router) {
		r.Use(middlewares.RequireAuth)

		r.Get("/homepage", NewHomepageHandler(cfg.Books, rd))
		r.Get("/createbook", NewCreateBookPageHandler(rd))
		r.Post("/createbook", NewCreateBookHandler(cfg.Books, cfg.Uploads, v, rd))
		r.Get("/editbook/{id}", NewEditBookPageHandler(cfg.Books, rd))
		r.With(tx).Post("/editbook/{id}", NewEditBookHandler(cfg.Books, v, rd))
		r.Get("/deletebook/{id}", NewDeleteBookPageHandler(cfg.Books, rd))
		r.With(tx).Post("/deletebook/{id}", NewDeleteBookHandler(cfg.Books))
		r.Get("/userprofile", NewUserProfileHandler(cfg.Books, rd))
		r.Get("/download/{id}", NewDownloadHandler(cfg.Books, cfg.Files))
		r.With(tx).Post("/updateprofile", NewUpdateProfileHandler(cfg.Profiles, v))
		r.Post("/upload-profile-pic", NewUploadProfilePicHandler(cfg.Profiles, cfg.Uploads))
	})

	// JSON API
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewares.RequireAuthAPI)
		r.Get("/books", NewBooksAPIHandler(cfg.Books))
	})

	r.NotFound(NewNotFoundHandler(rd))
	return r
}
