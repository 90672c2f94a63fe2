// Package storage keeps uploaded wardrobe images on local disk and serves
// them under a public base URL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrTooLarge        = errors.New("object too large")
	ErrUnsupportedType = errors.New("unsupported content type")
	ErrInvalidKey      = errors.New("invalid object key")
)

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// FileStore writes objects under dir. Keys are random so a URL reveals
// nothing about the owner.
type FileStore struct {
	dir      string
	baseURL  string
	maxBytes int64
}

func NewFileStore(dir, baseURL string, maxBytes int64) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &FileStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/"), maxBytes: maxBytes}, nil
}

// Dir is the root the HTTP layer serves from
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) Put(ctx context.Context, r io.Reader, contentType string) (string, string, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", "", ErrUnsupportedType
	}
	ext, ok := allowedTypes[mediaType]
	if !ok {
		return "", "", ErrUnsupportedType
	}

	key := uuid.NewString() + ext
	f, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", "", err
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", "", err
	}
	if s.maxBytes > 0 && n > s.maxBytes {
		return "", "", ErrTooLarge
	}
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	if err := os.Rename(tmp, filepath.Join(s.dir, key)); err != nil {
		return "", "", err
	}
	return key, s.baseURL + "/" + key, nil
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return ErrInvalidKey
	}
	err := os.Remove(filepath.Join(s.dir, key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
