package middlewares

import (
	"bytes"
	"context"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/sbilibin2017/gw-book-platform/internal/logger"
)

// txState carries the request transaction, whether it must be rolled back
// and the callbacks to run once it has committed.
type txState struct {
	tx          *sqlx.Tx
	abort       bool
	afterCommit []func()
}

type txKey struct{}

// bufferedWriter holds the response until the transaction outcome is known.
type bufferedWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedWriter() *bufferedWriter {
	return &bufferedWriter{header: make(http.Header)}
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) WriteHeader(code int) {
	if b.status == 0 {
		b.status = code
	}
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedWriter) flushTo(w http.ResponseWriter) {
	for k, v := range b.header {
		w.Header()[k] = v
	}
	if b.status == 0 {
		b.status = http.StatusOK
	}
	w.WriteHeader(b.status)
	_, _ = w.Write(b.body.Bytes())
}

// TxMiddleware wraps an HTTP handler with a database transaction.
// The transaction commits unless the handler called AbortTx or answered with a 5xx.
// The response is only sent once the outcome is known.
// Callbacks registered with AfterCommit run only after a successful commit.
func TxMiddleware(db *sqlx.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := requestIDFromContext(r.Context())

			tx, err := db.BeginTxx(r.Context(), nil)
			if err != nil {
				logger.Log.Errorw("failed to begin transaction", "request_id", reqID, "error", err)
				w.WriteHeader(http.StatusInternalServerError)
				return
			}

			defer func() {
				if rec := recover(); rec != nil {
					_ = tx.Rollback()
					panic(rec)
				}
			}()

			state := &txState{tx: tx}
			r = r.WithContext(context.WithValue(r.Context(), txKey{}, state))

			bw := newBufferedWriter()
			next.ServeHTTP(bw, r)

			if state.abort || bw.status >= http.StatusInternalServerError {
				if err := tx.Rollback(); err != nil {
					logger.Log.Errorw("failed to rollback transaction", "request_id", reqID, "error", err)
				}
				bw.flushTo(w)
				return
			}

			if err := tx.Commit(); err != nil {
				logger.Log.Errorw("failed to commit transaction", "request_id", reqID, "error", err)
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			for _, fn := range state.afterCommit {
				fn()
			}
			bw.flushTo(w)
		})
	}
}

// GetTxFromContext retrieves the transaction from the context. Returns nil if not present.
func GetTxFromContext(ctx context.Context) *sqlx.Tx {
	state, _ := ctx.Value(txKey{}).(*txState)
	if state == nil {
		return nil
	}
	return state.tx
}

// AbortTx marks the request transaction for rollback. It is a no-op outside TxMiddleware.
func AbortTx(ctx context.Context) {
	if state, _ := ctx.Value(txKey{}).(*txState); state != nil {
		state.abort = true
	}
}

// AfterCommit queues fn to run once the request transaction has committed.
// Rolled back transactions drop it. Outside TxMiddleware fn runs immediately.
func AfterCommit(ctx context.Context, fn func()) {
	if state, _ := ctx.Value(txKey{}).(*txState); state != nil {
		state.afterCommit = append(state.afterCommit, fn)
		return
	}
	fn()
}
