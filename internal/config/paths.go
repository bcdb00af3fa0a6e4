package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// ProjectPaths holds the resolved directories for one project.
type ProjectPaths struct {
	Slug            string
	Root            string
	InboxDir        string
	RawDir          string
	SegmentsDir     string
	ExportsDir      string
	ThumbnailsDir   string
	LogsDir         string
	NASRoot         string
	NASProjectDir   string
	NASRawBackupDir string
	DBPath          string
	LockPath        string
}

// ProjectPaths resolves the directory layout for a project slug. It has no side effects.
func (c *Config) ProjectPaths(slug string) (ProjectPaths, error) {
	if !validSlug(slug) {
		return ProjectPaths{}, fmt.Errorf("invalid project slug %q", slug)
	}
	root := filepath.Join(c.Paths.ProjectsDir, slug)
	paths := ProjectPaths{
		Slug:          slug,
		Root:          root,
		InboxDir:      filepath.Join(root, "inbox"),
		RawDir:        filepath.Join(root, "raw"),
		SegmentsDir:   filepath.Join(root, "segments"),
		ExportsDir:    filepath.Join(root, "exports"),
		ThumbnailsDir: filepath.Join(root, "thumbnails"),
		LogsDir:       filepath.Join(root, "logs"),
		NASRoot:       c.Paths.NASRoot,
		DBPath:        filepath.Join(root, "tapedeck.db"),
		LockPath:      filepath.Join(root, "tapedeck.lock"),
	}
	if c.Paths.NASRoot != "" {
		paths.NASProjectDir = filepath.Join(c.Paths.NASRoot, slug)
		paths.NASRawBackupDir = filepath.Join(paths.NASProjectDir, "raw")
	}
	return paths, nil
}

// EnsureLocal creates every local project directory.
func (p ProjectPaths) EnsureLocal() error {
	for _, dir := range []string{p.Root, p.InboxDir, p.RawDir, p.SegmentsDir, p.ExportsDir, p.ThumbnailsDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}
