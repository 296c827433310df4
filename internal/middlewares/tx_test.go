package middlewares

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestTxMiddleware_Success(t *testing.T) {
	sqlxDB, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		assert.NotNil(t, GetTxFromContext(r.Context()))
		http.Redirect(w, r, "/homepage", http.StatusFound)
	})

	rr := httptest.NewRecorder()
	TxMiddleware(sqlxDB)(next).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/createbook", nil))

	assert.True(t, nextCalled)
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/homepage", rr.Header().Get("Location"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxMiddleware_AbortRollsBack(t *testing.T) {
	sqlxDB, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		AbortTx(r.Context())
		http.Redirect(w, r, "/createbook", http.StatusFound)
	})

	rr := httptest.NewRecorder()
	TxMiddleware(sqlxDB)(next).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/createbook", nil))

	assert.Equal(t, http.StatusFound, rr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxMiddleware_ServerErrorRollsBack(t *testing.T) {
	sqlxDB, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	rr := httptest.NewRecorder()
	TxMiddleware(sqlxDB)(next).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "boom")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxMiddleware_BeginError(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	mock.ExpectBegin().WillReturnError(sql.ErrConnDone)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next must not be called")
	})

	rr := httptest.NewRecorder()
	TxMiddleware(sqlxDB)(next).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestTxMiddleware_CommitError(t *testing.T) {
	sqlxDB, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(sql.ErrConnDone)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/homepage", http.StatusFound)
	})

	rr := httptest.NewRecorder()
	TxMiddleware(sqlxDB)(next).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Empty(t, rr.Header().Get("Location"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxMiddleware_Panic(t *testing.T) {
	sqlxDB, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	assert.Panics(t, func() {
		TxMiddleware(sqlxDB)(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxMiddleware_AfterCommit(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(mock sqlmock.Sqlmock)
		handler   http.HandlerFunc
		wantCalls int
	}{
		{
			name: "runs after commit",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectCommit()
			},
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Redirect(w, r, "/homepage", http.StatusFound)
			},
			wantCalls: 1,
		},
		{
			name: "dropped on abort",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectRollback()
			},
			handler: func(w http.ResponseWriter, r *http.Request) {
				AbortTx(r.Context())
				http.Redirect(w, r, "/createbook", http.StatusFound)
			},
		},
		{
			name: "dropped on server error",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectRollback()
			},
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "dropped on commit error",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectCommit().WillReturnError(sql.ErrConnDone)
			},
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Redirect(w, r, "/homepage", http.StatusFound)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sqlxDB, mock := newMockDB(t)
			tt.setup(mock)

			calls := 0
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				AfterCommit(r.Context(), func() { calls++ })
				assert.Zero(t, calls)
				tt.handler(w, r)
			})

			TxMiddleware(sqlxDB)(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))

			assert.Equal(t, tt.wantCalls, calls)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAfterCommit_NoTx(t *testing.T) {
	called := false
	AfterCommit(httptest.NewRequest(http.MethodGet, "/", nil).Context(), func() { called = true })
	assert.True(t, called)
}

func TestGetTxFromContext_Absent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, GetTxFromContext(req.Context()))
	assert.NotPanics(t, func() { AbortTx(req.Context()) })
}
