package media_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tapedeck/internal/media"
	"tapedeck/internal/testsupport"
)

func TestThumbnailSeek(t *testing.T) {
	tests := []struct {
		duration float64
		want     float64
	}{
		{duration: 0, want: 1},
		{duration: 5, want: 1},
		{duration: 120, want: 12},
		{duration: 7200, want: 30},
	}
	for _, tt := range tests {
		if got := media.ThumbnailSeek(tt.duration); got != tt.want {
			t.Fatalf("ThumbnailSeek(%v) = %v, want %v", tt.duration, got, tt.want)
		}
	}
}

func TestGenerateThumbnail(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFFmpegStub(testsupport.FFmpegStub{DurationSeconds: 120}))
	kit := media.New(cfg, nil)
	out := filepath.Join(t.TempDir(), "thumbs", "tape.jpg")

	result := kit.GenerateThumbnail(context.Background(), "/videos/tape.mp4", out, false)
	if result.Status != media.ThumbnailCreated || result.OutputPath != out {
		t.Fatalf("unexpected result: %+v", result)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("expected thumbnail file: %v", err)
	}

	var seekArgs string
	for _, call := range testsupport.StubCalls(t, cfg.Media.FFmpegBinary) {
		if strings.Contains(call, "-frames:v") {
			seekArgs = call
		}
	}
	if !strings.Contains(seekArgs, "-ss 12.00") || !strings.Contains(seekArgs, "scale=640:-2") || !strings.Contains(seekArgs, " -n ") {
		t.Fatalf("unexpected thumbnail args: %q", seekArgs)
	}

	again := kit.GenerateThumbnail(context.Background(), "/videos/tape.mp4", out, false)
	if again.Status != media.ThumbnailSkipped || again.Message != "Thumbnail already exists." {
		t.Fatalf("expected skip, got %+v", again)
	}

	forced := kit.GenerateThumbnail(context.Background(), "/videos/tape.mp4", out, true)
	if forced.Status != media.ThumbnailCreated {
		t.Fatalf("expected forced regeneration, got %+v", forced)
	}
}

func TestGenerateThumbnailFailures(t *testing.T) {
	out := filepath.Join(t.TempDir(), "tape.jpg")

	unavailable := media.New(testsupport.NewConfig(t), nil).GenerateThumbnail(context.Background(), "/v.mp4", out, false)
	if unavailable.Status != media.ThumbnailUnavailable {
		t.Fatalf("expected unavailable, got %+v", unavailable)
	}

	cfg := testsupport.NewConfig(t, testsupport.WithFFmpegStub(testsupport.FFmpegStub{FailEncode: true}))
	failed := media.New(cfg, nil).GenerateThumbnail(context.Background(), "/v.mp4", out, false)
	if failed.Status != media.ThumbnailError || failed.OutputPath != "" {
		t.Fatalf("expected error status, got %+v", failed)
	}
}
