package handlers

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/sbilibin2017/gw-book-platform/internal/logger"
	"github.com/sbilibin2017/gw-book-platform/internal/middlewares"
	"github.com/sbilibin2017/gw-book-platform/internal/models"
	"github.com/sbilibin2017/gw-book-platform/internal/templates"
)

// Page names.
const (
	PageLogin       = "login.html"
	PageRegister    = "register.html"
	PageHomepage    = "homepage.html"
	PageBookForm    = "bookform.html"
	PageDeleteBook  = "deletebook.html"
	PageUserProfile = "userprofile.html"
	PageNotFound    = "404.html"
)

// Page is the value every template is executed with.
type Page struct {
	Title string
	User  *models.UserView
	Flash *models.Flash
	Data  any
}

// Renderer executes page templates wrapped in the shared layout.
type Renderer struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"date": func(t time.Time) string { return t.Format("Jan 2, 2006") },
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	return newRenderer(templates.FS)
}

func newRenderer(fsys fs.FS) (*Renderer, error) {
	names, err := fs.Glob(fsys, "*.html")
	if err != nil {
		return nil, err
	}

	pages := make(map[string]*template.Template)
	for _, name := range names {
		if name == "layout.html" {
			continue
		}
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(fsys, "layout.html", name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pages[name] = tmpl
	}
	return &Renderer{pages: pages}, nil
}

// Render writes page with status. The pending flash is consumed only here.
func (rd *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, page, title string, data any) {
	ctx := r.Context()
	sess := middlewares.SessionFromContext(ctx)

	tmpl, ok := rd.pages[page]
	if !ok {
		logger.Log.Errorw("unknown template", "page", page)
		http.Error(w, "Template Error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	err := tmpl.ExecuteTemplate(&buf, "layout", Page{
		Title: title,
		User:  sess.User().View(),
		Flash: sess.PopFlash(ctx),
		Data:  data,
	})
	if err != nil {
		logger.Log.Errorw("failed to execute template", "page", page, "error", err)
		http.Error(w, "Template Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// redirectWithFlash queues flash and redirects to target.
func redirectWithFlash(w http.ResponseWriter, r *http.Request, flash models.Flash, target string) {
	ctx := r.Context()
	if err := middlewares.SessionFromContext(ctx).AddFlash(ctx, w, flash); err != nil {
		logger.Log.Errorw("failed to set flash", "message", flash.Message, "error", err)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// failWithFlash is redirectWithFlash for failed mutations: the request transaction is rolled back.
func failWithFlash(ctx context.Context, w http.ResponseWriter, r *http.Request, flash models.Flash, target string) {
	middlewares.AbortTx(ctx)
	redirectWithFlash(w, r, flash, target)
}
