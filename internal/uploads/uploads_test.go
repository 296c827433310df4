package uploads

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/sbilibin2017/gw-book-platform/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type part struct {
	field, filename, contentType, body string
}

func multipartRequest(t *testing.T, parts ...part) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+p.field+`"; filename="`+p.filename+`"`)
		h.Set("Content-Type", p.contentType)
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write([]byte(p.body))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func fixedUploader(store storage.Storage) *Uploader {
	u := NewUploader(store)
	u.now = func() time.Time { return time.UnixMilli(1700000000000) }
	u.rand = func() int64 { return 42 }
	return u
}

func TestUploader_Save(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	u := fixedUploader(storage.NewLocal(root))

	r := multipartRequest(t,
		part{"bookFile", "Novel.PDF", "application/pdf", "%PDF-1.4"},
		part{"profilePictureFile", "me.png", "image/png", "png"},
	)
	require.NoError(t, ParseForm(httptest.NewRecorder(), r, 60<<20))

	fh, err := FormFile(r, KindBook)
	require.NoError(t, err)
	got, err := u.Save(ctx, KindBook, fh)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/books/1700000000000-42.pdf", got)

	data, err := os.ReadFile(filepath.Join(root, "uploads", "books", "1700000000000-42.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	fh, err = FormFile(r, KindProfile)
	require.NoError(t, err)
	got, err = u.Save(ctx, KindProfile, fh)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/profiles/profile-1700000000000-42.png", got)
}

func TestUploader_Rejections(t *testing.T) {
	ctx := context.Background()
	u := NewUploader(storage.NewLocal(t.TempDir()))

	tests := []struct {
		name    string
		part    part
		kind    Kind
		wantErr error
	}{
		{name: "image with wrong extension", part: part{"profilePictureFile", "me.exe", "image/png", "x"}, kind: KindProfile, wantErr: ErrUnsupportedType},
		{name: "image with wrong content type", part: part{"profilePictureFile", "me.png", "application/octet-stream", "x"}, kind: KindProfile, wantErr: ErrUnsupportedType},
		{name: "svg is not allowed", part: part{"profilePictureFile", "me.svg", "image/svg+xml", "x"}, kind: KindProfile, wantErr: ErrUnsupportedType},
		{name: "too large", part: part{"profilePictureFile", "big.jpg", "image/jpeg", strings.Repeat("x", 64)}, kind: Kind{Field: "profilePictureFile", Dir: "uploads/profiles", MaxBytes: 10, Images: true}, wantErr: ErrFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := multipartRequest(t, tt.part)
			require.NoError(t, ParseForm(httptest.NewRecorder(), r, 1<<20))
			fh, err := FormFile(r, tt.kind)
			require.NoError(t, err)

			_, err = u.Save(ctx, tt.kind, fh)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := u.Save(ctx, KindBook, nil)
	assert.ErrorIs(t, err, ErrMissingFile)
}

func TestFormFile_Missing(t *testing.T) {
	r := multipartRequest(t, part{"coverImage", "c.png", "image/png", "png"})
	require.NoError(t, ParseForm(httptest.NewRecorder(), r, 1<<20))

	_, err := FormFile(r, KindBook)
	assert.ErrorIs(t, err, ErrMissingFile)

	_, err = FormFile(httptest.NewRequest(http.MethodPost, "/", nil), KindCover)
	assert.ErrorIs(t, err, ErrMissingFile)
}

func TestParseForm_BodyTooLarge(t *testing.T) {
	r := multipartRequest(t, part{"bookFile", "a.pdf", "application/pdf", strings.Repeat("x", 4096)})
	err := ParseForm(httptest.NewRecorder(), r, 512)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestKind_MaxMB(t *testing.T) {
	assert.Equal(t, int64(50), KindBook.MaxMB())
	assert.Equal(t, int64(5), KindProfile.MaxMB())
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store := storage.NewLocal(root)

	require.NoError(t, Bootstrap(ctx, store))
	for _, name := range []string{"default-avatar.svg", "default-cover.svg"} {
		_, err := os.Stat(filepath.Join(root, "uploads", name))
		assert.NoError(t, err)
	}

	// Existing files are left untouched.
	custom := filepath.Join(root, "uploads", "default-avatar.svg")
	require.NoError(t, os.WriteFile(custom, []byte("custom"), 0o644))
	require.NoError(t, Bootstrap(ctx, store))
	data, err := os.ReadFile(custom)
	require.NoError(t, err)
	assert.Equal(t, "custom", string(data))
}

func TestBootstrap_StorageError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := storage.NewMockStorage(ctrl)
	store.EXPECT().Exists(gomock.Any(), gomock.Any()).Return(false, errors.New("unreachable"))

	assert.EqualError(t, Bootstrap(context.Background(), store), "unreachable")
}
