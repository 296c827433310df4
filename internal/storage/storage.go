package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

//go:generate mockgen -source=storage.go -destination=mock_storage.go -package=storage

// Error variables
var (
	ErrNotFound   = errors.New("object not found")
	ErrInvalidKey = errors.New("invalid object key")
)

// Storage keeps uploaded files under slash-separated keys such as "uploads/books/1-2.pdf".
type Storage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// CleanKey normalises a key and rejects anything escaping the storage root.
func CleanKey(key string) (string, error) {
	key = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(key, "\\", "/")), "/")
	if key == "" || key == "." {
		return "", ErrInvalidKey
	}
	return key, nil
}
