package deps

// MediaRequirements lists the media tools the pipelines invoke. ffprobe is
// optional because duration can still be parsed from ffmpeg diagnostics.
func MediaRequirements(ffmpegBinary, ffprobeBinary string) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     ffmpegBinary,
			Description: "Thumbnails, scene detection and clip export",
		},
		{
			Name:        "FFprobe",
			Command:     ffprobeBinary,
			Description: "Structured duration probe",
			Optional:    true,
		},
	}
}
