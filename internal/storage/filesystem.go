// Package storage writes edited images to the local filesystem.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrExists is returned when a key is taken and overwriting is off.
var ErrExists = errors.New("storage: file already exists")

// FileStore saves images under a root directory.
type FileStore struct {
	basePath  string
	overwrite bool
}

// NewFileStore initializes a FileStore rooted at basePath, creating it if
// needed. With overwrite off, Write refuses to replace an existing file.
func NewFileStore(basePath string, overwrite bool) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath, overwrite: overwrite}, nil
}

// Write stores data at the relative key and returns the path written. Keys
// are cleaned so they cannot escape the root.
func (s *FileStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !s.overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(fullPath, flags, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrExists, fullPath)
		}
		return "", fmt.Errorf("storage: open file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("storage: close file: %w", err)
	}
	return fullPath, nil
}

// WriteUnique stores data at key, or at key with a -1, -2, ... suffix before
// the extension when key is taken.
func (s *FileStore) WriteUnique(ctx context.Context, key string, data []byte) (string, error) {
	if s != nil && s.overwrite {
		return s.Write(ctx, key, data)
	}
	ext := filepath.Ext(key)
	stem := strings.TrimSuffix(key, ext)
	candidate := key
	for i := 1; ; i++ {
		path, err := s.Write(ctx, candidate, data)
		if !errors.Is(err, ErrExists) {
			return path, err
		}
		if i > 999 {
			return "", err
		}
		candidate = stem + "-" + strconv.Itoa(i) + ext
	}
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
