package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/approval-bridge/internal/application/port"
)

const localScheme = "local://"

// LocalStore implements port.ArchiveStore on a directory tree.
type LocalStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalStore creates a store rooted at baseDir
func NewLocalStore(baseDir string, logger *zap.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive root: %w", err)
	}
	return &LocalStore{baseDir: baseDir, logger: logger}, nil
}

// Put writes r under name and returns a local:// location.
func (s *LocalStore) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	fullPath, err := s.resolve(name)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		s.logger.Error("Failed to create parent directories",
			zap.String("path", fullPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to create directories: %w", err)
	}

	f, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	size, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(fullPath)
		s.logger.Error("Failed to write archive",
			zap.String("path", fullPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.Debug("Archive stored",
		zap.String("path", fullPath),
		zap.Int64("size", size))
	return localScheme + filepath.ToSlash(name), nil
}

func (s *LocalStore) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	fullPath, err := s.locate(location)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return f, nil
}

// Remove deletes the archive; a missing file is not an error.
func (s *LocalStore) Remove(ctx context.Context, location string) error {
	fullPath, err := s.locate(location)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete archive: %w", err)
	}
	return nil
}

// Sweep deletes archives last modified before cutoff, then prunes empty directories.
func (s *LocalStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0
	var dirs []string

	err := filepath.WalkDir(s.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != s.baseDir {
				dirs = append(dirs, path)
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				s.logger.Warn("Failed to remove expired archive", zap.String("path", path), zap.Error(err))
				return nil
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("sweep archives: %w", err)
	}

	// Deepest first so parents empty out.
	for i := len(dirs) - 1; i >= 0; i-- {
		_ = os.Remove(dirs[i])
	}
	return removed, nil
}

func (s *LocalStore) locate(location string) (string, error) {
	if !strings.HasPrefix(location, localScheme) {
		return "", fmt.Errorf("not a local archive location: %s", location)
	}
	return s.resolve(strings.TrimPrefix(location, localScheme))
}

// resolve joins name to the root and rejects paths that escape it.
func (s *LocalStore) resolve(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("archive name is required")
	}
	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(name))

	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes base directory: %s", name)
	}
	return absPath, nil
}

var _ port.ArchiveStore = (*LocalStore)(nil)
