package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths holds the absolute directories the application reads from and writes to.
// Relative settings resolve against the working directory.
type Paths struct {
	WorkingDir   string
	ProjectsRoot string
	ReportsDir   string
	LogsDir      string
}

// ResolvePaths turns the configured locations into absolute paths. An empty
// reports directory resolves under the OS temp directory.
func (c *Config) ResolvePaths() (*Paths, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	abs := func(p string) string {
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(wd, p)
	}

	reports := c.Reports.Dir
	if reports == "" {
		reports = filepath.Join(os.TempDir(), DefaultReportsSubdir)
	}

	return &Paths{
		WorkingDir:   wd,
		ProjectsRoot: abs(c.Projects.Root),
		ReportsDir:   abs(reports),
		LogsDir:      abs(filepath.Dir(c.Logging.FilePath)),
	}, nil
}

// EnsureDirectories creates the directories the application writes into.
// The projects root is only ever read and is not created.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.ReportsDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("Ensured directory exists", slog.String("directory", dir))
	}
	return nil
}

// ProjectsRootExists reports whether the projects root is an existing directory.
func (p *Paths) ProjectsRootExists() bool {
	info, err := os.Stat(p.ProjectsRoot)
	return err == nil && info.IsDir()
}

// LogPathResolution logs the resolved directories
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("working", p.WorkingDir),
			slog.String("projects_root", p.ProjectsRoot),
			slog.String("reports", p.ReportsDir),
			slog.String("logs", p.LogsDir),
		),
		slog.Bool("projects_root_exists", p.ProjectsRootExists()))
}

