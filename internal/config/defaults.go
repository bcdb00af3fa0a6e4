package config

const (
	defaultConfigPath              = "~/.config/tapedeck/config.toml"
	defaultDataDir                 = "~/.local/share/tapedeck"
	defaultProjectsDir             = "~/.local/share/tapedeck/projects"
	defaultNASRoot                 = "/mnt/nas/tapedeck"
	defaultAPIBind                 = "127.0.0.1:7488"
	defaultFFmpegBinary            = "ffmpeg"
	defaultFFprobeBinary           = "ffprobe"
	defaultSceneThreshold          = 0.35
	defaultMinSegmentSeconds       = 90.0
	defaultProbeTimeoutSeconds     = 20
	defaultThumbnailTimeoutSeconds = 60
	defaultSceneTimeoutSeconds     = 90
	defaultExportTimeoutSeconds    = 1800
	defaultThumbnailWidth          = 640
	defaultQueueSize               = 64
	defaultBusyRetryAttempts       = 50
	defaultBusyRetryDelayMS        = 100
	defaultRecentJobLimit          = 50
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultLogRetentionDays        = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			ProjectsDir: defaultProjectsDir,
			NASRoot:     defaultNASRoot,
			APIBind:     defaultAPIBind,
		},
		Media: Media{
			FFmpegBinary:            defaultFFmpegBinary,
			FFprobeBinary:           defaultFFprobeBinary,
			SceneThreshold:          defaultSceneThreshold,
			MinSegmentSeconds:       defaultMinSegmentSeconds,
			ProbeTimeoutSeconds:     defaultProbeTimeoutSeconds,
			ThumbnailTimeoutSeconds: defaultThumbnailTimeoutSeconds,
			SceneTimeoutSeconds:     defaultSceneTimeoutSeconds,
			ExportTimeoutSeconds:    defaultExportTimeoutSeconds,
			ThumbnailWidth:          defaultThumbnailWidth,
		},
		Jobs: Jobs{
			QueueSize:         defaultQueueSize,
			BusyRetryAttempts: defaultBusyRetryAttempts,
			BusyRetryDelayMS:  defaultBusyRetryDelayMS,
			RecentLimit:       defaultRecentJobLimit,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
