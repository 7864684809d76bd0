// Package storage keeps uploaded document bytes addressed by opaque locators.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("object not found")
	ErrInvalidLocator = errors.New("invalid storage locator")
)

// LocalStore stores objects as files below a root directory.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root failed: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root failed: %w", err)
	}
	return &LocalStore{root: abs}, nil
}

// Locator builds the conventional "{owner}/{unix millis}-{uuid}-{file name}"
// key. Every call yields a fresh key, even for the same name and instant.
func Locator(ownerID uint, fileName string, at time.Time) string {
	name := filepath.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "upload"
	}
	return fmt.Sprintf("%d/%d-%s-%s", ownerID, at.UnixMilli(), uuid.NewString(), name)
}

func (s *LocalStore) Upload(ctx context.Context, locator string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.resolve(locator)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create object dir failed: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp object failed: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write object failed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close object failed: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("commit object failed: %w", err)
	}
	return nil
}

func (s *LocalStore) Download(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.resolve(locator)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, locator)
		}
		return nil, fmt.Errorf("read object failed: %w", err)
	}
	return data, nil
}

// Delete removes the object. Deleting a missing object is not an error.
func (s *LocalStore) Delete(ctx context.Context, locator string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.resolve(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete object failed: %w", err)
	}
	return nil
}

func (s *LocalStore) resolve(locator string) (string, error) {
	if locator == "" || filepath.IsAbs(locator) || strings.Contains(locator, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	path := filepath.Join(s.root, filepath.FromSlash(locator))
	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	return path, nil
}
