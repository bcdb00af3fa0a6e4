package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDigestMatchesSHA256(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tape.mp4")
	content := make([]byte, digestChunkSize*2+17)
	for i := range content {
		content[i] = byte(i % 251)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Digest(path)
	if err != nil {
		t.Fatalf("Digest failed: %v", err)
	}
	sum := sha256.Sum256(content)
	if want := hex.EncodeToString(sum[:]); got != want {
		t.Fatalf("digest mismatch: got %s want %s", got, want)
	}
}

func TestDigestMissingFile(t *testing.T) {
	if _, err := Digest(filepath.Join(t.TempDir(), "missing.mp4")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestPlaceWithoutConflict(t *testing.T) {
	dir := t.TempDir()

	if got := PlaceWithoutConflict(dir, "clip.mp4"); got != filepath.Join(dir, "clip.mp4") {
		t.Fatalf("expected free name to be returned as-is, got %q", got)
	}

	for _, name := range []string{"clip.mp4", "clip_1.mp4"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if got := PlaceWithoutConflict(dir, "clip.mp4"); got != filepath.Join(dir, "clip_2.mp4") {
		t.Fatalf("expected clip_2.mp4, got %q", got)
	}
	if got := PlaceWithoutConflict(dir, "notes"); got != filepath.Join(dir, "notes") {
		t.Fatalf("expected extensionless name unchanged, got %q", got)
	}
}

func TestCopyPreservingMetadata(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.mp4")
	dst := filepath.Join(dir, "dst.mp4")

	if err := os.WriteFile(src, []byte("hello world"), 0o640); err != nil {
		t.Fatal(err)
	}
	mtime := time.Date(2001, 7, 4, 12, 0, 0, 0, time.UTC)
	if err := os.Chtimes(src, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	if err := CopyPreservingMetadata(src, dst); err != nil {
		t.Fatalf("CopyPreservingMetadata failed: %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello world" {
		t.Fatalf("content mismatch: got %q", got)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(mtime) {
		t.Fatalf("expected mtime %v, got %v", mtime, info.ModTime())
	}
	if info.Mode().Perm() != 0o640 {
		t.Fatalf("expected mode 0640, got %o", info.Mode().Perm())
	}
}

func TestCopyPreservingMetadataNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.mp4")
	dst := filepath.Join(dir, "dst.mp4")
	if err := os.WriteFile(src, []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CopyPreservingMetadata(src, dst); err == nil {
		t.Fatal("expected error when destination exists")
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "old" {
		t.Fatalf("existing destination was modified: %q", got)
	}
}

func TestCopyPreservingMetadataMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := CopyPreservingMetadata(filepath.Join(dir, "missing"), filepath.Join(dir, "dst")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestFormatBytes(t *testing.T) {
	if got := FormatBytes(0); got != "0 B" {
		t.Fatalf("unexpected zero format %q", got)
	}
	if got := FormatBytes(1500000); got != "1.5 MB" {
		t.Fatalf("unexpected format %q", got)
	}
	if got := FormatBytes(-4); got != "0 B" {
		t.Fatalf("expected negative clamp, got %q", got)
	}
}
