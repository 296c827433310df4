package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/sbilibin2017/gw-book-platform/internal/logger"
	"github.com/sbilibin2017/gw-book-platform/internal/middlewares"
	"github.com/sbilibin2017/gw-book-platform/internal/models"
	"github.com/sbilibin2017/gw-book-platform/internal/services"
)

//go:generate mockgen -source=auth.go -destination=mock_auth.go -package=handlers

// Authenticator verifies credentials and creates accounts.
type Authenticator interface {
	Login(ctx context.Context, identifier, password string) (*models.UserDB, error)
	Register(ctx context.Context, username, email, password string) (*models.UserDB, error)
}

type loginData struct {
	Identifier string
}

type registerData struct {
	Form  RegisterForm
	Error string
}

// NewIndexHandler sends visitors to the catalogue or the login page.
func NewIndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if middlewares.SessionFromContext(r.Context()).Authenticated() {
			http.Redirect(w, r, "/homepage", http.StatusFound)
			return
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	}
}

// NewLoginPageHandler renders the login form.
func NewLoginPageHandler(rd *Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if middlewares.SessionFromContext(r.Context()).Authenticated() {
			http.Redirect(w, r, "/homepage", http.StatusFound)
			return
		}
		rd.Render(w, r, http.StatusOK, PageLogin, "Login", loginData{})
	}
}

// NewLoginHandler authenticates an identifier (username or email) and password.
// Every failure produces the same message.
func NewLoginHandler(svc Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		identifier := r.PostFormValue("identifier")
		password := r.PostFormValue("password")

		user, err := svc.Login(ctx, identifier, password)
		if err != nil {
			if !errors.Is(err, services.ErrInvalidCredentials) {
				logger.Log.Errorw("login failed", "error", err)
			}
			redirectWithFlash(w, r, models.FlashErr("Invalid credentials"), "/login")
			return
		}

		if err := middlewares.SessionFromContext(ctx).Login(ctx, w, user); err != nil {
			logger.Log.Errorw("failed to start session", "user_id", user.UserID, "error", err)
			redirectWithFlash(w, r, models.FlashErr("Something went wrong"), "/login")
			return
		}
		http.Redirect(w, r, "/homepage", http.StatusFound)
	}
}

// NewRegisterPageHandler renders the registration form.
func NewRegisterPageHandler(rd *Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rd.Render(w, r, http.StatusOK, PageRegister, "Register", registerData{})
	}
}

// NewRegisterHandler creates an account and logs it in.
// Validation failures re-render the form with an inline message.
func NewRegisterHandler(svc Authenticator, v *validator.Validate, rd *Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		form := parseRegisterForm(r)

		rerender := func(msg string) {
			middlewares.AbortTx(ctx)
			form.Password, form.ConfirmPassword = "", ""
			rd.Render(w, r, http.StatusBadRequest, PageRegister, "Register", registerData{Form: form, Error: msg})
		}

		if err := v.Struct(form); err != nil {
			rerender(validationMessage(err))
			return
		}

		user, err := svc.Register(ctx, form.Username, form.Email, form.Password)
		if err != nil {
			if errors.Is(err, services.ErrUserAlreadyExists) {
				rerender("Username or email already exists")
				return
			}
			logger.Log.Errorw("registration failed", "error", err)
			rerender("Error during registration")
			return
		}

		if err := middlewares.SessionFromContext(ctx).Login(ctx, w, user); err != nil {
			logger.Log.Errorw("failed to start session", "user_id", user.UserID, "error", err)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		http.Redirect(w, r, "/homepage", http.StatusFound)
	}
}

// NewLogoutHandler ends the session.
func NewLogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if err := middlewares.SessionFromContext(ctx).Logout(ctx, w); err != nil {
			logger.Log.Errorw("logout failed", "error", err)
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	}
}
