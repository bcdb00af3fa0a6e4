package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"tapedeck/internal/config"
	"tapedeck/internal/library"
	"tapedeck/internal/project"
)

// ProjectSlug is the project every test helper opens.
const ProjectSlug = "test"

// MustOpenProject opens the test project for cfg and closes it on cleanup.
func MustOpenProject(t testing.TB, cfg *config.Config) *project.Project {
	t.Helper()

	p, err := project.Open(context.Background(), cfg, ProjectSlug, nil)
	if err != nil {
		t.Fatalf("open project: %v", err)
	}
	t.Cleanup(func() {
		if err := p.Close(); err != nil {
			t.Errorf("close project: %v", err)
		}
	})
	return p
}

// MustSession opens a session on p and closes it on cleanup.
func MustSession(t testing.TB, p *project.Project) *library.Session {
	t.Helper()

	sess, err := p.Session(context.Background())
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

// InboxFile writes a capture of size bytes into the project inbox and
// returns its path.
func InboxFile(t testing.TB, p *project.Project, name string, size int64) string {
	t.Helper()

	path := filepath.Join(p.Paths.InboxDir, name)
	WriteFile(t, path, size)
	return path
}
