package preflight

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"tapedeck/internal/deps"
	"tapedeck/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckNASOffline(t *testing.T) {
	result := CheckNAS(filepath.Join(t.TempDir(), "mnt"))
	if result.Passed || !result.Optional {
		t.Fatalf("expected optional failure, got %+v", result)
	}
	if len(Failed([]Result{result})) != 0 {
		t.Fatal("offline NAS should not count as a required failure")
	}
}

func TestFromDependency(t *testing.T) {
	ok := FromDependency(deps.Status{Name: "FFmpeg", Available: true, Path: "/usr/bin/ffmpeg"})
	if !ok.Passed || ok.Detail != "/usr/bin/ffmpeg" {
		t.Fatalf("unexpected result: %+v", ok)
	}
	missing := FromDependency(deps.Status{Name: "FFprobe", Optional: true, Detail: `binary "ffprobe" not found`})
	if missing.Passed || !missing.Optional || missing.Detail == "" {
		t.Fatalf("unexpected result: %+v", missing)
	}
}

func TestRunAll(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFFmpegStub(testsupport.FFmpegStub{DurationSeconds: 60}))
	paths, err := cfg.ProjectPaths(testsupport.ProjectSlug)
	if err != nil {
		t.Fatalf("ProjectPaths: %v", err)
	}
	if err := paths.EnsureLocal(); err != nil {
		t.Fatalf("EnsureLocal: %v", err)
	}

	results := RunAll(context.Background(), cfg, paths)
	if len(results) != 6 {
		t.Fatalf("expected six checks, got %d", len(results))
	}
	for _, r := range results[:4] {
		if !r.Passed {
			t.Fatalf("expected %s to pass: %s", r.Name, r.Detail)
		}
	}
	if results[4].Name != "FFmpeg" || !results[4].Passed {
		t.Fatalf("expected stub ffmpeg to resolve: %+v", results[4])
	}
}
