package media_test

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"tapedeck/internal/media"
	"tapedeck/internal/testsupport"
)

func TestParseFFmpegDuration(t *testing.T) {
	got, ok := media.ParseFFmpegDuration("Input #0\n  Duration: 01:02:03.50, start: 0.0\n")
	if !ok || math.Abs(got-3723.5) > 1e-9 {
		t.Fatalf("ParseFFmpegDuration = %v, %v", got, ok)
	}
	if _, ok := media.ParseFFmpegDuration("Duration: N/A"); ok {
		t.Fatal("expected N/A duration to be rejected")
	}
}

func TestProbeMetadataFallsBackToFFmpeg(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFFmpegStub(testsupport.FFmpegStub{DurationSeconds: 754.25}))
	video := filepath.Join(t.TempDir(), "tape.mp4")
	testsupport.WriteFile(t, video, 2048)

	meta := media.New(cfg, nil).ProbeMetadata(context.Background(), video)
	if meta.FileSizeBytes == nil || *meta.FileSizeBytes != 2048 {
		t.Fatalf("unexpected size: %v", meta.FileSizeBytes)
	}
	if meta.DurationSeconds == nil || math.Abs(*meta.DurationSeconds-754.25) > 0.01 {
		t.Fatalf("unexpected duration: %v", meta.DurationSeconds)
	}
}

func TestProbeMetadataPrefersFFprobe(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Media.FFprobeBinary = testsupport.WriteExecutable(t, filepath.Join(t.TempDir(), "ffprobe"),
		"#!/bin/sh\necho '{\"streams\":[{\"index\":0,\"codec_type\":\"video\"}],\"format\":{\"duration\":\"61.5\"}}'\n")
	video := filepath.Join(t.TempDir(), "tape.mp4")
	testsupport.WriteFile(t, video, 10)

	meta := media.New(cfg, nil).ProbeMetadata(context.Background(), video)
	if meta.DurationSeconds == nil || *meta.DurationSeconds != 61.5 {
		t.Fatalf("unexpected duration: %v", meta.DurationSeconds)
	}
}

func TestProbeMetadataWithoutTools(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	video := filepath.Join(t.TempDir(), "tape.mp4")
	testsupport.WriteFile(t, video, 10)

	meta := media.New(cfg, nil).ProbeMetadata(context.Background(), video)
	if meta.DurationSeconds != nil {
		t.Fatalf("expected nil duration, got %v", *meta.DurationSeconds)
	}
	if meta.FileSizeBytes == nil {
		t.Fatal("expected size from stat")
	}

	missing := media.New(cfg, nil).ProbeMetadata(context.Background(), filepath.Join(t.TempDir(), "gone.mp4"))
	if missing.FileSizeBytes != nil {
		t.Fatal("expected nil size for missing file")
	}
	if _, err := os.Stat(video); err != nil {
		t.Fatalf("probe must not touch the source: %v", err)
	}
}
