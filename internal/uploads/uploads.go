package uploads

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/sbilibin2017/gw-book-platform/internal/logger"
	"github.com/sbilibin2017/gw-book-platform/internal/storage"
)

const mb = 1 << 20

// Error variables
var (
	ErrFileTooLarge     = errors.New("file too large")
	ErrUnsupportedType  = errors.New("unsupported file type")
	ErrMissingFile      = errors.New("file is required")
	errFormBodyTooLarge = fmt.Errorf("request body: %w", ErrFileTooLarge)
)

// Kind describes one class of upload.
type Kind struct {
	Field    string // form field name
	Dir      string // storage directory under the root
	MaxBytes int64
	Prefix   string
	Images   bool // restrict to the image allowlist
}

// Upload kinds.
var (
	KindBook    = Kind{Field: "bookFile", Dir: "uploads/books", MaxBytes: 50 * mb}
	KindCover   = Kind{Field: "coverImage", Dir: "uploads/covers", MaxBytes: 50 * mb}
	KindProfile = Kind{Field: "profilePictureFile", Dir: "uploads/profiles", MaxBytes: 5 * mb, Prefix: "profile-", Images: true}
)

// MaxMB returns the limit in whole megabytes for user-facing messages.
func (k Kind) MaxMB() int64 {
	return k.MaxBytes / mb
}

var imageTypes = map[string]bool{
	"jpeg": true,
	"jpg":  true,
	"png":  true,
	"gif":  true,
	"webp": true,
}

func isImage(filename, contentType string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if !imageTypes[ext] {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return false
	}
	return imageTypes[strings.TrimPrefix(mediaType, "image/")]
}

// Uploader validates multipart files and writes them to a Storage.
type Uploader struct {
	store storage.Storage
	now   func() time.Time
	rand  func() int64
}

// NewUploader creates an Uploader writing to store.
func NewUploader(store storage.Storage) *Uploader {
	return &Uploader{
		store: store,
		now:   time.Now,
		rand:  func() int64 { return rand.Int63n(1e9) },
	}
}

// FileName builds a collision-resistant stored name keeping the original extension.
func (u *Uploader) FileName(kind Kind, original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	return fmt.Sprintf("%s%d-%d%s", kind.Prefix, u.now().UnixMilli(), u.rand(), ext)
}

// Save validates fh against kind, stores it and returns its root-relative URL path.
func (u *Uploader) Save(ctx context.Context, kind Kind, fh *multipart.FileHeader) (string, error) {
	if fh == nil {
		return "", ErrMissingFile
	}
	if fh.Size > kind.MaxBytes {
		return "", ErrFileTooLarge
	}

	contentType := fh.Header.Get("Content-Type")
	if kind.Images && !isImage(fh.Filename, contentType) {
		return "", ErrUnsupportedType
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	key := path.Join(kind.Dir, u.FileName(kind, fh.Filename))
	if err := u.store.Put(ctx, key, f, fh.Size, contentType); err != nil {
		return "", err
	}

	logger.Log.Infow("file uploaded", "field", kind.Field, "key", key, "size", fh.Size)
	return "/" + key, nil
}

// FormFile returns the header of the uploaded field, or ErrMissingFile.
func FormFile(r *http.Request, kind Kind) (*multipart.FileHeader, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[kind.Field]) == 0 {
		return nil, ErrMissingFile
	}
	fh := r.MultipartForm.File[kind.Field][0]
	if fh.Filename == "" || fh.Size == 0 {
		return nil, ErrMissingFile
	}
	return fh, nil
}

// ParseForm parses a multipart body no larger than maxBytes.
func ParseForm(w http.ResponseWriter, r *http.Request, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return errFormBodyTooLarge
		}
		return fmt.Errorf("parse multipart form: %w", err)
	}
	return nil
}
