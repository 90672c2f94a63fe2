package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileStore_PutAndDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, "http://localhost:8080/media/", 1024)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	key, url, err := s.Put(ctx, strings.NewReader("fake png"), "image/png")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if !strings.HasSuffix(key, ".png") {
		t.Fatalf("expected .png key, got %q", key)
	}
	if url != "http://localhost:8080/media/"+key {
		t.Fatalf("unexpected url %q", url)
	}
	b, err := os.ReadFile(filepath.Join(dir, key))
	if err != nil || string(b) != "fake png" {
		t.Fatalf("stored content mismatch: %q, %v", b, err)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, key)); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, got %v", err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
}

func TestFileStore_Rejects(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, "http://localhost/media", 4)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, _, err := s.Put(ctx, strings.NewReader("12345"), "image/jpeg"); err != ErrTooLarge {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if _, _, err := s.Put(ctx, strings.NewReader("hi"), "text/html"); err != ErrUnsupportedType {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
	if err := s.Delete(ctx, "../etc/passwd"); err != ErrInvalidKey {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("rejected uploads must not leave files, found %d", len(entries))
	}
}
