package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/snapforge/snapforge/pkg/config"
)

// Compile-time interface check.
var _ Store = (*localStore)(nil)

type localStore struct {
	basePath string
}

// NewLocalStore creates a Store rooted at the configured base directory.
func NewLocalStore(cfg *config.LocalStorageConfig) Store {
	return &localStore{basePath: filepath.Clean(cfg.Path)}
}

// fullPath resolves a blob path under the base directory, rejecting
// traversal out of it.
func (l *localStore) fullPath(path string) (string, error) {
	if path == "" || strings.Contains(path, "..") || filepath.IsAbs(path) {
		return "", fmt.Errorf("invalid blob path %q", path)
	}

	full := filepath.Join(l.basePath, filepath.FromSlash(path))
	if !strings.HasPrefix(full, l.basePath+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid blob path %q", path)
	}

	return full, nil
}

func (l *localStore) Save(
	_ context.Context, path string, data []byte,
) error {
	full, err := l.fullPath(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("creating blob directory: %w", err)
	}

	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("writing blob %s: %w", path, err)
	}

	return nil
}

func (l *localStore) Read(
	_ context.Context, path string,
) ([]byte, error) {
	full, err := l.fullPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(full) //nolint:gosec // path is validated above
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("reading blob %s: %w", path, err)
	}

	return data, nil
}

func (l *localStore) Delete(_ context.Context, path string) error {
	full, err := l.fullPath(path)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("deleting blob %s: %w", path, err)
	}

	return nil
}

func (l *localStore) Exists(
	_ context.Context, path string,
) (bool, error) {
	full, err := l.fullPath(path)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("statting blob %s: %w", path, err)
	}

	return true, nil
}

func (l *localStore) DeletePrefix(
	_ context.Context, prefix string,
) error {
	full, err := l.fullPath(prefix)
	if err != nil {
		return err
	}

	if err := os.RemoveAll(full); err != nil {
		return fmt.Errorf("deleting blob prefix %s: %w", prefix, err)
	}

	return nil
}
