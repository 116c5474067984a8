package files

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	apperrors "projectdash/internal/errors"
)

// Manager owns a generated-artifact directory such as the reports folder.
type Manager struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a new file manager instance
func NewManager(dir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		dir:    dir,
		logger: logger.With(slog.String("component", "file_manager")),
		now:    time.Now,
	}
}

// Dir returns the managed directory.
func (m *Manager) Dir() string {
	return m.dir
}

// EnsureDirectory creates the managed directory if it doesn't exist
func (m *Manager) EnsureDirectory() error {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return apperrors.NewStorageError("failed to create directory", err).WithPath(m.dir)
	}
	return nil
}

// Path resolves name inside the managed directory and checks that it is a regular file.
func (m *Manager) Path(name string) (string, error) {
	path, err := ResolveWithin(m.dir, name)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s: %w", name, fs.ErrNotExist)
	}
	return path, nil
}

// ListFiles returns the regular files in the directory with the given extension,
// newest first. An empty extension matches every file.
func (m *Manager) ListFiles(ext string) ([]WorkbookFile, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []WorkbookFile{}, nil
		}
		return nil, apperrors.NewStorageError("failed to list directory", err).WithPath(m.dir).WithContext("ext", ext)
	}

	files := make([]WorkbookFile, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if ext != "" && !strings.EqualFold(filepath.Ext(entry.Name()), ext) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, workbookFromInfo(filepath.Join(m.dir, entry.Name()), info))
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Modified.After(files[j].Modified)
	})
	return files, nil
}

// CleanupOlderThan removes regular files last modified more than maxAge ago.
// A non-positive maxAge disables cleanup.
func (m *Manager) CleanupOlderThan(maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}

	files, err := m.ListFiles("")
	if err != nil {
		return 0, err
	}

	cutoff := m.now().Add(-maxAge)
	removed := 0
	for _, f := range files {
		if !f.Modified.Before(cutoff) {
			continue
		}
		if err := os.Remove(f.Path); err != nil {
			m.logger.Warn("failed to remove expired file",
				slog.String("file", f.Name),
				slog.String("error", err.Error()))
			continue
		}
		removed++
	}

	if removed > 0 {
		m.logger.Info("removed expired files",
			slog.String("dir", m.dir),
			slog.Int("count", removed),
			slog.Duration("max_age", maxAge))
	}
	return removed, nil
}
