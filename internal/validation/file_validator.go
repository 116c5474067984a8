package validation

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"projectdash/internal/files"
	"projectdash/internal/infrastructure"
)

var (
	// ErrNotWorkbook is returned for files without a workbook extension.
	ErrNotWorkbook = errors.New("not a workbook")
	// ErrTemporaryFile is returned for office lock files such as "~$budget.xlsx".
	ErrTemporaryFile = errors.New("temporary lock file")
)

// FileValidator checks workbook paths and directories before they are used
// by the command line tools and at startup.
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: infrastructure.WithComponent(logger, "file_validator"),
	}
}

// ValidateDirectory checks that dir exists and is a directory.
func (v *FileValidator) ValidateDirectory(dir string) error {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		v.logger.Error("Directory does not exist",
			slog.String("directory", dir))
		return fmt.Errorf("directory %s does not exist: %w", dir, fs.ErrNotExist)
	}
	if err != nil {
		v.logger.Error("Failed to stat directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to stat directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		v.logger.Error("Path is not a directory",
			slog.String("path", dir))
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

// ValidateWritableDirectory creates dir if needed and checks that files can be
// created in it.
func (v *FileValidator) ValidateWritableDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		v.logger.Error("Failed to create directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".write_test_*")
	if err != nil {
		v.logger.Error("Directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("directory %s is not writable: %w", dir, err)
	}
	tmp.Close()
	os.Remove(tmp.Name())

	v.logger.Debug("Writable directory validated", slog.String("directory", dir))
	return nil
}

// ValidateFile checks that path exists, is a regular file and can be opened.
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		v.logger.Error("File does not exist",
			slog.String("file", path))
		return fmt.Errorf("file %s does not exist: %w", path, fs.ErrNotExist)
	}
	if err != nil {
		v.logger.Error("Failed to stat file",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		v.logger.Error("Path is a directory, not a file",
			slog.String("path", path))
		return fmt.Errorf("%s is a directory, not a file", path)
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("File is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("file %s is not readable: %w", path, err)
	}
	file.Close()

	v.logger.Debug("File validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateWorkbook checks that path is a readable .xlsx, .xlsm or .xls file
// and not an office lock file.
func (v *FileValidator) ValidateWorkbook(path string) error {
	base := filepath.Base(path)
	if strings.HasPrefix(base, "~") {
		v.logger.Warn("Skipping temporary workbook", slog.String("file", path))
		return fmt.Errorf("%s: %w", base, ErrTemporaryFile)
	}
	if !files.IsWorkbook(base) {
		v.logger.Error("File is not a workbook",
			slog.String("file", path),
			slog.String("extension", filepath.Ext(base)))
		return fmt.Errorf("%s (extension %q): %w", base, filepath.Ext(base), ErrNotWorkbook)
	}
	return v.ValidateFile(path)
}

// CountWorkbooks counts the workbooks directly inside dir.
func (v *FileValidator) CountWorkbooks(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && files.IsWorkbook(entry.Name()) {
			count++
		}
	}

	v.logger.Debug("Workbooks counted",
		slog.String("directory", dir),
		slog.Int("count", count))
	return count, nil
}
