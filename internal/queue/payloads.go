package queue

import (
	"encoding/json"
	"fmt"
)

// Type tags a job with the pipeline it runs.
type Type string

const (
	TypeIngestFile     Type = "ingest_file"
	TypeIngestAll      Type = "ingest_all"
	TypeProcessMedia   Type = "process_media"
	TypeExportSegments Type = "export_segments"
)

// Payload is the typed input of one job type.
type Payload interface {
	JobType() Type
}

// Result is the typed output of one job type.
type Result interface {
	JobType() Type
}

type IngestFilePayload struct {
	Filename string `json:"filename"`
	TapeID   int64  `json:"tape_id,omitempty"`
}

type IngestAllPayload struct{}

type ProcessMediaPayload struct {
	TapeID int64 `json:"tape_id"`
}

type ExportSegmentsPayload struct {
	TapeID int64 `json:"tape_id"`
	Force  bool  `json:"force"`
}

func (IngestFilePayload) JobType() Type     { return TypeIngestFile }
func (IngestAllPayload) JobType() Type      { return TypeIngestAll }
func (ProcessMediaPayload) JobType() Type   { return TypeProcessMedia }
func (ExportSegmentsPayload) JobType() Type { return TypeExportSegments }

// IngestFileResult mirrors the ingest pipeline's outcome for one file.
type IngestFileResult struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	TapeID       int64  `json:"tape_id,omitempty"`
	BackupStatus string `json:"backup_status,omitempty"`
	Redirect     string `json:"redirect"`
}

type IngestAllResult struct {
	Message  string  `json:"message"`
	Ingested int     `json:"ingested"`
	Skipped  int     `json:"skipped"`
	TapeIDs  []int64 `json:"tape_ids"`
	Redirect string  `json:"redirect"`
}

type ProcessMediaResult struct {
	ThumbnailStatus string   `json:"thumbnail_status"`
	Message         string   `json:"message"`
	Suggestions     int      `json:"suggestions"`
	DurationSeconds *float64 `json:"duration_seconds"`
	FileSizeBytes   *int64   `json:"file_size_bytes"`
	Redirect        string   `json:"redirect"`
}

type ExportSegmentsResult struct {
	Message   string `json:"message"`
	Exported  int    `json:"exported"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
	OutputDir string `json:"output_dir"`
	Redirect  string `json:"redirect"`
}

func (IngestFileResult) JobType() Type     { return TypeIngestFile }
func (IngestAllResult) JobType() Type      { return TypeIngestAll }
func (ProcessMediaResult) JobType() Type   { return TypeProcessMedia }
func (ExportSegmentsResult) JobType() Type { return TypeExportSegments }

// KnownType reports whether t is a registered job type.
func KnownType(t Type) bool {
	switch t {
	case TypeIngestFile, TypeIngestAll, TypeProcessMedia, TypeExportSegments:
		return true
	}
	return false
}

// DecodePayload decodes raw into the payload struct registered for t.
func DecodePayload(t Type, raw []byte) (Payload, error) {
	var target Payload
	switch t {
	case TypeIngestFile:
		target = &IngestFilePayload{}
	case TypeIngestAll:
		target = &IngestAllPayload{}
	case TypeProcessMedia:
		target = &ProcessMediaPayload{}
	case TypeExportSegments:
		target = &ExportSegmentsPayload{}
	default:
		return nil, fmt.Errorf("decode payload: unknown job type %q", t)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, target); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", t, err)
		}
	}
	return deref(target), nil
}

// DecodeResult decodes raw into the result struct registered for t.
func DecodeResult(t Type, raw []byte) (Result, error) {
	var target Result
	switch t {
	case TypeIngestFile:
		target = &IngestFileResult{}
	case TypeIngestAll:
		target = &IngestAllResult{}
	case TypeProcessMedia:
		target = &ProcessMediaResult{}
	case TypeExportSegments:
		target = &ExportSegmentsResult{}
	default:
		return nil, fmt.Errorf("decode result: unknown job type %q", t)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", t, err)
	}
	return deref(target).(Result), nil
}

// deref returns the struct value behind the decode target so callers can
// type-switch on value types.
func deref(v interface{ JobType() Type }) interface{ JobType() Type } {
	switch p := v.(type) {
	case *IngestFilePayload:
		return *p
	case *IngestAllPayload:
		return *p
	case *ProcessMediaPayload:
		return *p
	case *ExportSegmentsPayload:
		return *p
	case *IngestFileResult:
		return *p
	case *IngestAllResult:
		return *p
	case *ProcessMediaResult:
		return *p
	case *ExportSegmentsResult:
		return *p
	}
	return v
}

func encode(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
