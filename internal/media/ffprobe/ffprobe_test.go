package ffprobe

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestDurationSeconds(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   float64
		ok     bool
	}{
		{"format duration", Result{Format: Format{Duration: "600.000000"}}, 600, true},
		{"stream fallback", Result{Format: Format{Duration: "N/A"}, Streams: []Stream{{CodecType: "video", Duration: "123.5"}}}, 123.5, true},
		{"missing", Result{Format: Format{Duration: ""}}, 0, false},
		{"garbage", Result{Format: Format{Duration: "bad"}}, 0, false},
		{"zero", Result{Format: Format{Duration: "0"}}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.result.DurationSeconds()
			if ok != tt.ok || got != tt.want {
				t.Fatalf("DurationSeconds() = %v, %v; want %v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestHasVideo(t *testing.T) {
	if (Result{Streams: []Stream{{CodecType: "audio"}}}).HasVideo() {
		t.Fatal("expected no video stream")
	}
	if !(Result{Streams: []Stream{{CodecType: "audio"}, {CodecType: "Video"}}}).HasVideo() {
		t.Fatal("expected video stream")
	}
}

func TestInspectWithStub(t *testing.T) {
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffprobe")
	script := "#!/bin/sh\necho '{\"streams\":[{\"index\":0,\"codec_type\":\"video\"}],\"format\":{\"duration\":\"42.5\",\"size\":\"1000\"}}'\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	result, err := Inspect(context.Background(), stub, "/tmp/anything.mp4")
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if d, ok := result.DurationSeconds(); !ok || d != 42.5 {
		t.Fatalf("unexpected duration %v %v", d, ok)
	}
	if !result.HasVideo() {
		t.Fatal("expected video stream")
	}
}

func TestInspectFailure(t *testing.T) {
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffprobe")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\necho 'no such file' >&2\nexit 1\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	if _, err := Inspect(context.Background(), stub, "/tmp/missing.mp4"); err == nil {
		t.Fatal("expected error from failing ffprobe")
	}
	if _, err := Inspect(context.Background(), stub, "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
