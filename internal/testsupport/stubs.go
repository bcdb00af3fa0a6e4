package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// FFmpegStub describes how the scripted ffmpeg behaves.
type FFmpegStub struct {
	// DurationSeconds is printed as the input duration; zero prints none.
	DurationSeconds float64
	// Cuts are emitted as showinfo pts_time lines during scene detection.
	Cuts []float64
	// FailScene makes scene detection exit non-zero.
	FailScene bool
	// FailCopy makes stream-copy exports fail so the re-encode path runs.
	FailCopy bool
	// FailEncode makes re-encode exports and thumbnails fail.
	FailEncode bool
}

// InstallFFmpegStub writes an executable ffmpeg stand-in into dir and returns
// its path. Every invocation appends its arguments to <path>.calls.
func InstallFFmpegStub(t testing.TB, dir string, stub FFmpegStub) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	b.WriteString("echo \"$*\" >> \"$0.calls\"\n")
	b.WriteString("for a; do last=\"$a\"; done\n")
	b.WriteString("case \"$*\" in\n")

	b.WriteString("*filter_complex*)\n")
	if stub.FailScene {
		b.WriteString("  echo 'scene filter failed' >&2\n  exit 1 ;;\n")
	} else {
		for _, cut := range stub.Cuts {
			fmt.Fprintf(&b, "  echo '[Parsed_showinfo_1 @ 0x5555] n: 1 pts: 100 pts_time:%g pos: 1 fmt:yuv420p' >&2\n", cut)
		}
		b.WriteString("  exit 0 ;;\n")
	}

	b.WriteString("*\"-c copy\"*)\n")
	if stub.FailCopy {
		b.WriteString("  echo 'copy not supported' >&2\n  exit 1 ;;\n")
	} else {
		b.WriteString("  printf 'copied clip' > \"$last\"\n  exit 0 ;;\n")
	}

	b.WriteString("*libx264*|*\"-frames:v\"*)\n")
	if stub.FailEncode {
		b.WriteString("  echo 'encoder exploded' >&2\n  exit 1 ;;\n")
	} else {
		b.WriteString("  printf 'encoded output' > \"$last\"\n  exit 0 ;;\n")
	}

	b.WriteString("*)\n")
	if stub.DurationSeconds > 0 {
		fmt.Fprintf(&b, "  echo '  Duration: %s, start: 0.000000, bitrate: 2500 kb/s' >&2\n", ffmpegClock(stub.DurationSeconds))
	}
	b.WriteString("  echo 'At least one output file must be specified' >&2\n  exit 1 ;;\n")
	b.WriteString("esac\n")

	return WriteExecutable(t, filepath.Join(dir, "ffmpeg"), b.String())
}

// WriteExecutable writes a shell script with the executable bit set.
func WriteExecutable(t testing.TB, path, script string) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", path, err)
	}
	return path
}

// StubCalls returns the argument lines recorded by a stub.
func StubCalls(t testing.TB, stubPath string) []string {
	t.Helper()

	data, err := os.ReadFile(stubPath + ".calls")
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("read stub calls: %v", err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func ffmpegClock(seconds float64) string {
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	rest := seconds - float64(hours*3600+minutes*60)
	return fmt.Sprintf("%02d:%02d:%05.2f", hours, minutes, rest)
}
