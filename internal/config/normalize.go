package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeMedia()
	c.normalizeJobs()
	c.normalizeLogging()
	c.Backup.RetrySchedule = strings.TrimSpace(c.Backup.RetrySchedule)
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if strings.TrimSpace(c.Paths.ProjectsDir) == "" {
		c.Paths.ProjectsDir = defaultProjectsDir
	}
	if value, ok := os.LookupEnv("TAPEDECK_NAS_ROOT"); ok && strings.TrimSpace(value) != "" {
		c.Paths.NASRoot = value
	}

	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.ProjectsDir, err = expandPath(c.Paths.ProjectsDir); err != nil {
		return fmt.Errorf("paths.projects_dir: %w", err)
	}
	if c.Paths.NASRoot, err = expandPath(strings.TrimSpace(c.Paths.NASRoot)); err != nil {
		return fmt.Errorf("paths.nas_root: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.DefaultProject = strings.TrimSpace(c.Paths.DefaultProject)
	return nil
}

func (c *Config) normalizeMedia() {
	c.Media.FFmpegBinary = strings.TrimSpace(c.Media.FFmpegBinary)
	if c.Media.FFmpegBinary == "" {
		c.Media.FFmpegBinary = defaultFFmpegBinary
	}
	c.Media.FFprobeBinary = strings.TrimSpace(c.Media.FFprobeBinary)
	if c.Media.FFprobeBinary == "" {
		c.Media.FFprobeBinary = defaultFFprobeBinary
	}
	if c.Media.SceneThreshold == 0 {
		c.Media.SceneThreshold = defaultSceneThreshold
	}
	if c.Media.ProbeTimeoutSeconds <= 0 {
		c.Media.ProbeTimeoutSeconds = defaultProbeTimeoutSeconds
	}
	if c.Media.ThumbnailTimeoutSeconds <= 0 {
		c.Media.ThumbnailTimeoutSeconds = defaultThumbnailTimeoutSeconds
	}
	if c.Media.SceneTimeoutSeconds <= 0 {
		c.Media.SceneTimeoutSeconds = defaultSceneTimeoutSeconds
	}
	if c.Media.ExportTimeoutSeconds <= 0 {
		c.Media.ExportTimeoutSeconds = defaultExportTimeoutSeconds
	}
	if c.Media.ThumbnailWidth <= 0 {
		c.Media.ThumbnailWidth = defaultThumbnailWidth
	}
}

func (c *Config) normalizeJobs() {
	if c.Jobs.QueueSize <= 0 {
		c.Jobs.QueueSize = defaultQueueSize
	}
	if c.Jobs.BusyRetryAttempts <= 0 {
		c.Jobs.BusyRetryAttempts = defaultBusyRetryAttempts
	}
	if c.Jobs.BusyRetryDelayMS < 0 {
		c.Jobs.BusyRetryDelayMS = defaultBusyRetryDelayMS
	}
	if c.Jobs.RecentLimit <= 0 {
		c.Jobs.RecentLimit = defaultRecentJobLimit
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "text", "pretty":
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	switch level {
	case "":
		level = defaultLogLevel
	case "warning":
		level = "warn"
	}
	c.Logging.Level = level
}
