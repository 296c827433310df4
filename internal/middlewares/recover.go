package middlewares

import (
	"net/http"
	"net/url"
	"runtime/debug"

	"github.com/sbilibin2017/gw-book-platform/internal/logger"
	"github.com/sbilibin2017/gw-book-platform/internal/models"
)

// RecoverMiddleware turns a panic into a flash message and a redirect back.
func RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			logger.Log.Errorw("panic recovered",
				"request_id", requestIDFromContext(r.Context()),
				"panic", rec,
				"uri", r.RequestURI,
				"stack", string(debug.Stack()),
			)

			ctx := r.Context()
			if err := SessionFromContext(ctx).AddFlash(ctx, w, models.FlashErr("Something went wrong")); err != nil {
				logger.Log.Errorw("failed to set flash", "error", err)
			}
			http.Redirect(w, r, backURL(r), http.StatusFound)
		}()

		next.ServeHTTP(w, r)
	})
}

// backURL returns the same-host Referer path, or "/".
func backURL(r *http.Request) string {
	ref := r.Referer()
	if ref == "" {
		return "/"
	}
	u, err := url.Parse(ref)
	if err != nil || (u.Host != "" && u.Host != r.Host) {
		return "/"
	}
	return u.RequestURI()
}
