package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir        string `toml:"data_dir" validate:"required"`
	ProjectsDir    string `toml:"projects_dir" validate:"required"`
	NASRoot        string `toml:"nas_root"`
	APIBind        string `toml:"api_bind" validate:"required,hostname_port"`
	DefaultProject string `toml:"default_project"`
}

// Media contains external tool and scene-detection settings.
type Media struct {
	FFmpegBinary            string  `toml:"ffmpeg_binary" validate:"required"`
	FFprobeBinary           string  `toml:"ffprobe_binary" validate:"required"`
	SceneThreshold          float64 `toml:"scene_threshold" validate:"gt=0,lt=1"`
	MinSegmentSeconds       float64 `toml:"min_segment_seconds" validate:"gte=0"`
	ProbeTimeoutSeconds     int     `toml:"probe_timeout_seconds" validate:"gt=0"`
	ThumbnailTimeoutSeconds int     `toml:"thumbnail_timeout_seconds" validate:"gt=0"`
	SceneTimeoutSeconds     int     `toml:"scene_timeout_seconds" validate:"gt=0"`
	ExportTimeoutSeconds    int     `toml:"export_timeout_seconds" validate:"gt=0"`
	ThumbnailWidth          int     `toml:"thumbnail_width" validate:"gt=0"`
}

// Jobs contains background worker settings.
type Jobs struct {
	QueueSize         int `toml:"queue_size" validate:"gt=0"`
	BusyRetryAttempts int `toml:"busy_retry_attempts" validate:"gt=0"`
	BusyRetryDelayMS  int `toml:"busy_retry_delay_ms" validate:"gte=0"`
	RecentLimit       int `toml:"recent_limit" validate:"gt=0"`
}

// Backup contains NAS backup retry settings.
type Backup struct {
	// RetrySchedule is a cron expression; empty disables scheduled retries.
	RetrySchedule string `toml:"retry_schedule"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format" validate:"oneof=console json"`
	Level         string `toml:"level" validate:"oneof=debug info warn error"`
	RetentionDays int    `toml:"retention_days" validate:"gte=0"`
}

// Config encapsulates all configuration values for tapedeck.
//
// Configuration sections by subsystem:
//   - Paths: data, project and NAS roots plus the API bind address
//   - Media: ffmpeg/ffprobe binaries, timeouts and scene detection
//   - Jobs: worker queue and database busy retry
//   - Backup: scheduled NAS backup retries
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Media   Media   `toml:"media"`
	Jobs    Jobs    `toml:"jobs"`
	Backup  Backup  `toml:"backup"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	localPath, err := filepath.Abs("tapedeck.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(localPath); err == nil && !info.IsDir() {
		return localPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the global data and projects directories.
// The NAS root is never created here; an absent mount means backups are deferred.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.LogDir(), c.Paths.ProjectsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LogDir returns the directory that holds the global log file.
func (c *Config) LogDir() string {
	return filepath.Join(c.Paths.DataDir, "logs")
}

// ProbeTimeout returns the ffprobe timeout as a duration.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Media.ProbeTimeoutSeconds) * time.Second
}

// ThumbnailTimeout returns the thumbnail extraction timeout as a duration.
func (c *Config) ThumbnailTimeout() time.Duration {
	return time.Duration(c.Media.ThumbnailTimeoutSeconds) * time.Second
}

// SceneTimeout returns the scene detection timeout as a duration.
func (c *Config) SceneTimeout() time.Duration {
	return time.Duration(c.Media.SceneTimeoutSeconds) * time.Second
}

// ExportTimeout returns the per-clip export timeout as a duration.
func (c *Config) ExportTimeout() time.Duration {
	return time.Duration(c.Media.ExportTimeoutSeconds) * time.Second
}

// BusyRetryDelay returns the fixed backoff between busy database retries.
func (c *Config) BusyRetryDelay() time.Duration {
	return time.Duration(c.Jobs.BusyRetryDelayMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
