package files

import (
	"errors"
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

// ErrOutsideRoot is the cause of permission errors returned by ResolveWithin.
var ErrOutsideRoot = errors.New("path escapes root directory")

// WorkbookExtensions are the spreadsheet extensions offered for browsing.
var WorkbookExtensions = []string{".xlsx", ".xls", ".xlsm"}

// Project is a sub-directory of the projects root.
type Project struct {
	Name string `json:"name"`
	Path string `json:"-"`
}

// WorkbookFile describes a workbook on disk.
type WorkbookFile struct {
	Name      string    `json:"name"`
	Path      string    `json:"-"`
	Size      int64     `json:"size"`
	Modified  time.Time `json:"modified"`
	Created   time.Time `json:"created"`
	Extension string    `json:"extension"`
}

// Discovery lists projects and workbooks below a root directory
type Discovery struct {
	root   string
	logger *slog.Logger
}

// NewDiscovery creates a new file discovery instance
func NewDiscovery(root string, logger *slog.Logger) *Discovery {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discovery{
		root:   root,
		logger: logger.With(slog.String("component", "discovery")),
	}
}

// Root returns the projects root directory.
func (d *Discovery) Root() string {
	return d.root
}

// ListProjects returns the sub-directories of the root sorted by name.
// A missing root yields an empty list.
func (d *Discovery) ListProjects() ([]Project, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			d.logger.Warn("projects root does not exist", slog.String("root", d.root))
			return []Project{}, nil
		}
		return nil, fmt.Errorf("failed to read projects root %s: %w", d.root, err)
	}

	projects := make([]Project, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		projects = append(projects, Project{
			Name: entry.Name(),
			Path: filepath.Join(d.root, entry.Name()),
		})
	}

	sort.Slice(projects, func(i, j int) bool {
		return projects[i].Name < projects[j].Name
	})
	return projects, nil
}

// ProjectDir resolves a project name to its directory and checks that it exists.
func (d *Discovery) ProjectDir(project string) (string, error) {
	dir, err := ResolveWithin(d.root, project)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s: %w", project, fs.ErrNotExist)
	}
	return dir, nil
}

// WorkbookPath resolves a workbook inside a project folder.
func (d *Discovery) WorkbookPath(project, file string) (string, error) {
	return ResolveWithin(d.root, project, file)
}

// FindWorkbooks lists workbook files in dir, relative to the root unless absolute.
// Temporary lock files (names starting with "~") are skipped and the result is
// sorted by name. A missing directory yields an empty list.
func (d *Discovery) FindWorkbooks(dir string) ([]WorkbookFile, error) {
	fullPath := dir
	if !filepath.IsAbs(dir) {
		fullPath = filepath.Join(d.root, dir)
	}

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []WorkbookFile{}, nil
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", fullPath, err)
	}

	seen := make(map[string]struct{}, len(entries))
	files := make([]WorkbookFile, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !IsWorkbook(name) {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		info, err := entry.Info()
		if err != nil {
			d.logger.Debug("skipping unreadable entry",
				slog.String("name", name),
				slog.String("error", err.Error()))
			continue
		}
		files = append(files, workbookFromInfo(filepath.Join(fullPath, name), info))
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})
	return files, nil
}

// FileInfo returns size and timestamps for a workbook path.
func FileInfo(path string) (WorkbookFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return WorkbookFile{}, err
	}
	if info.IsDir() {
		return WorkbookFile{}, fmt.Errorf("%s is a directory", path)
	}
	return workbookFromInfo(path, info), nil
}

// IsWorkbook reports whether name has a workbook extension and is not a temp file.
func IsWorkbook(name string) bool {
	if strings.HasPrefix(name, "~") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range WorkbookExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// ResolveWithin joins parts onto root and rejects results outside root.
func ResolveWithin(root string, parts ...string) (string, error) {
	for _, p := range parts {
		if p == "" {
			return "", apperrors.NewAppValidationError("empty path segment")
		}
	}

	base := filepath.Clean(root)
	joined := filepath.Join(append([]string{base}, parts...)...)

	rel, err := filepath.Rel(base, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", apperrors.NewAppError(apperrors.ErrTypePermission,
			fmt.Sprintf("%s is outside the root", filepath.Join(parts...)), ErrOutsideRoot).WithPath(base)
	}
	return joined, nil
}

func workbookFromInfo(path string, info fs.FileInfo) WorkbookFile {
	return WorkbookFile{
		Name:      info.Name(),
		Path:      path,
		Size:      info.Size(),
		Modified:  info.ModTime(),
		Created:   createdTime(info),
		Extension: strings.ToLower(filepath.Ext(info.Name())),
	}
}
