package logging

import "strings"

// ProgressSampler suppresses repetitive job progress logs while preserving
// signal when the step or percentage bucket changes. Every progress update is
// still persisted to the job row; only the log output is sampled.
type ProgressSampler struct {
	bucketSize int
	lastStep   string
	lastBucket int
}

// NewProgressSampler constructs a sampler that emits when the percent crosses
// bucket boundaries (default 25%) or when the step changes.
func NewProgressSampler(bucketSize int) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 25
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether a progress event should be logged.
func (s *ProgressSampler) ShouldLog(percent int, step string) bool {
	if s == nil {
		return true
	}
	step = strings.TrimSpace(step)
	emit := false
	if step != "" && step != s.lastStep {
		s.lastStep = step
		s.lastBucket = -1
		emit = true
	}
	if percent > 100 {
		percent = 100
	}
	if percent >= 0 {
		bucket := percent / s.bucketSize
		if bucket > s.lastBucket {
			s.lastBucket = bucket
			emit = true
		}
	}
	return emit
}
