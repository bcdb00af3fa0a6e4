package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Path != present {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("unexpected blank command status: %#v", results[2])
	}
}

func TestAvailable(t *testing.T) {
	binDir := t.TempDir()
	stub := filepath.Join(binDir, "ffmpeg")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	t.Setenv("PATH", binDir)

	if !Available("ffmpeg") {
		t.Fatal("expected stub ffmpeg on PATH to be available")
	}
	if Available("ffprobe") {
		t.Fatal("expected ffprobe to be missing")
	}
	if Available("") {
		t.Fatal("expected blank command to be unavailable")
	}
}

func TestMediaRequirements(t *testing.T) {
	reqs := MediaRequirements("ffmpeg", "ffprobe")
	if len(reqs) != 2 {
		t.Fatalf("expected two requirements, got %d", len(reqs))
	}
	if reqs[0].Optional || !reqs[1].Optional {
		t.Fatalf("expected ffmpeg required and ffprobe optional: %#v", reqs)
	}
}
