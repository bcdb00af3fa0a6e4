package logging

import "strings"

// FormatSubject builds the job/tape subject string used in console output,
// e.g. "Job #12 (ingest_file) · Tape #3".
func FormatSubject(jobID, jobType, tapeID string) string {
	jobID = strings.TrimSpace(jobID)
	jobType = strings.TrimSpace(jobType)
	tapeID = strings.TrimSpace(tapeID)
	parts := make([]string, 0, 2)
	switch {
	case jobID != "" && jobType != "":
		parts = append(parts, "Job #"+jobID+" ("+jobType+")")
	case jobID != "":
		parts = append(parts, "Job #"+jobID)
	case jobType != "":
		parts = append(parts, jobType)
	}
	if tapeID != "" {
		parts = append(parts, "Tape #"+tapeID)
	}
	return strings.Join(parts, " · ")
}
