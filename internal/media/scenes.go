package media

import (
	"bufio"
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"tapedeck/internal/logging"
)

// Segment is a half-open time range within a tape, in seconds.
type Segment struct {
	Start float64
	End   float64
	// Confidence is nil when the detector does not report a score.
	Confidence *float64
}

// Length returns End minus Start.
func (s Segment) Length() float64 {
	return s.End - s.Start
}

var ptsTimePattern = regexp.MustCompile(`pts_time:(\d+\.?\d*)`)

// DetectSceneSegments runs ffmpeg scene detection over videoPath and returns
// merged segment suggestions. An empty result means nothing worth suggesting:
// ffmpeg missing, unknown duration, a failed or timed out run, or fewer than
// two segments after merging.
func (t *Toolkit) DetectSceneSegments(ctx context.Context, videoPath string) []Segment {
	logger := t.log()
	if !t.FFmpegAvailable() {
		logger.Info("scene detection skipped",
			logging.Event("scene_detection_skipped"),
			logging.String("reason", "ffmpeg not installed"),
		)
		return nil
	}
	duration, ok := t.DurationSeconds(ctx, videoPath)
	if !ok || duration <= 0 {
		logger.Info("scene detection skipped",
			logging.Event("scene_detection_no_duration"),
			logging.String("path", videoPath),
		)
		return nil
	}

	filter := fmt.Sprintf("select='gt(scene,%s)',showinfo", strconv.FormatFloat(t.SceneThreshold, 'f', -1, 64))
	result := t.run(ctx, t.SceneTimeout, t.FFmpeg,
		"-hide_banner",
		"-i", videoPath,
		"-filter_complex", filter,
		"-f", "null",
		"-",
	)
	if result.timedOut {
		logging.WarnWithContext(logger, "scene detection timed out", "scene_detection_timeout",
			logging.String("path", videoPath),
			logging.Duration("timeout", t.SceneTimeout),
			logging.String(logging.FieldImpact, "no segment suggestions for this tape"),
		)
		return nil
	}
	if result.err != nil {
		logging.WarnWithContext(logger, "scene detection failed", "scene_detection_failed",
			logging.String("path", videoPath),
			logging.Error(result.err),
			logging.String("stderr", lastLine(result.stderr)),
			logging.String(logging.FieldImpact, "no segment suggestions for this tape"),
		)
		return nil
	}

	cuts := ParsePTSTimes(result.stderr)
	segments := MergeShortSegments(BuildSegments(cuts, duration), t.MinSegmentSeconds)
	logger.Info("scene detection complete",
		logging.Event("scene_detection_complete"),
		logging.Int("cut_points", len(cuts)),
		logging.Int("segments", len(segments)),
		logging.Float64("duration_seconds", duration),
	)
	return segments
}

// ParsePTSTimes collects cut timestamps from showinfo lines, sorted and deduplicated.
func ParsePTSTimes(output string) []float64 {
	var times []float64
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, "showinfo") {
			continue
		}
		match := ptsTimePattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		value, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}
		times = append(times, value)
	}
	slices.Sort(times)
	return slices.Compact(times)
}

// BuildSegments turns sorted cut points into contiguous segments covering
// [0, duration]. Cuts at or before the running start, or at or past the end,
// are ignored.
func BuildSegments(cuts []float64, duration float64) []Segment {
	if duration <= 0 {
		return nil
	}
	var segments []Segment
	start := 0.0
	for _, cut := range cuts {
		if cut <= start || cut >= duration {
			continue
		}
		segments = append(segments, Segment{Start: start, End: cut})
		start = cut
	}
	if start < duration {
		segments = append(segments, Segment{Start: start, End: duration})
	}
	return segments
}

// MergeShortSegments folds segments shorter than minSeconds into a neighbour.
// A short running segment absorbs the next one; a short trailing segment is
// absorbed by its predecessor. Fewer than two resulting segments yields nil.
func MergeShortSegments(segments []Segment, minSeconds float64) []Segment {
	if len(segments) == 0 {
		return nil
	}
	merged := []Segment{segments[0]}
	for _, next := range segments[1:] {
		last := &merged[len(merged)-1]
		if last.Length() < minSeconds {
			last.End = next.End
			continue
		}
		merged = append(merged, next)
	}
	if n := len(merged); n > 1 && merged[n-1].Length() < minSeconds {
		merged[n-2].End = merged[n-1].End
		merged = merged[:n-1]
	}
	if len(merged) < 2 {
		return nil
	}
	return merged
}
