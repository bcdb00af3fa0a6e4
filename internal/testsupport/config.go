package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"tapedeck/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config rooted in a per-test temp directory. The NAS
// root points at a temp directory too, so backups succeed unless a test
// overrides it.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.ProjectsDir = filepath.Join(base, "projects")
	cfgVal.Paths.NASRoot = filepath.Join(base, "nas")
	if err := os.MkdirAll(cfgVal.Paths.NASRoot, 0o755); err != nil {
		t.Fatalf("create nas root: %v", err)
	}
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Jobs.BusyRetryDelayMS = 5
	// Keep media helpers off the host's real tools unless a stub is installed.
	cfgVal.Media.FFmpegBinary = filepath.Join(base, "bin", "missing-ffmpeg")
	cfgVal.Media.FFprobeBinary = filepath.Join(base, "bin", "missing-ffprobe")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithNASRoot overrides the NAS root. An empty value disables backups.
func WithNASRoot(path string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.NASRoot = path
	}
}

// WithMinSegmentSeconds overrides the scene merge threshold.
func WithMinSegmentSeconds(seconds float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Media.MinSegmentSeconds = seconds
	}
}

// WithFFmpegStub installs a scripted ffmpeg into the config.
func WithFFmpegStub(stub FFmpegStub) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Media.FFmpegBinary = InstallFFmpegStub(b.t, filepath.Join(b.baseDir, "bin"), stub)
	}
}
