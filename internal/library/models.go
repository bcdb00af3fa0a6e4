package library

// TapeStatus is the lifecycle position of a tape.
type TapeStatus string

const (
	TapeNew      TapeStatus = "New"
	TapeIngested TapeStatus = "Ingested"
	TapeMastered TapeStatus = "Mastered"
	TapeReviewed TapeStatus = "Reviewed"
	TapeFinal    TapeStatus = "Final"
)

// BackupStatus tracks whether a tape's raw file has an off-site copy.
type BackupStatus string

const (
	BackupUnknown     BackupStatus = "unknown"
	BackupQueued      BackupStatus = "queued"
	BackupNeedsBackup BackupStatus = "needs_backup"
	BackupBackedUp    BackupStatus = "backed_up"
)

// DateType classifies how precisely a tape's recording date is known.
type DateType string

const (
	DateExact   DateType = "exact"
	DateRange   DateType = "range"
	DateUnknown DateType = "unknown"
)

// Tape is one physical source recording.
type Tape struct {
	ID            int64
	TapeCode      string
	LabelText     string
	LabelIsGuess  bool
	Title         string
	SourceLabel   string
	DateType      DateType
	DateExact     string
	DateStart     *int64
	DateEnd       *int64
	DateLocked    bool
	Status        TapeStatus
	RawFilename   string
	RawPath       string
	SHA256        string
	IngestedAt    string
	BackupStatus  BackupStatus
	Notes         string
	Tags          []string
	CreatedAt     string
	Duration      *float64
	FileSizeBytes *int64
	ThumbPath     string
	ThumbAt       string
	SceneSuggest  bool
}

// Code returns the tape code, or TAPE_NNNN derived from the id when unset.
func (t *Tape) Code() string {
	if t.TapeCode != "" {
		return t.TapeCode
	}
	return FormatTapeCode(t.ID)
}

// SuggestionStatus is the resolution of a scene suggestion.
type SuggestionStatus string

const (
	SuggestionOpen     SuggestionStatus = "open"
	SuggestionAccepted SuggestionStatus = "accepted"
	SuggestionIgnored  SuggestionStatus = "ignored"
)

// Suggestion is a system-proposed cut awaiting accept or ignore.
type Suggestion struct {
	ID         int64
	TapeID     int64
	Start      float64
	End        float64
	Confidence *float64
	Status     SuggestionStatus
	Notes      string
	CreatedAt  string
}

// ExportStatus tracks the last export attempt for a segment.
type ExportStatus string

const (
	ExportNotExported ExportStatus = "not_exported"
	ExportExported    ExportStatus = "exported"
	ExportFailed      ExportStatus = "failed"
)

// CreatedBySystem marks segments produced from accepted suggestions.
const CreatedBySystem = "system"

// Segment is a committed cut of a tape and the unit of export.
type Segment struct {
	ID                int64
	TapeID            int64
	Start             float64
	End               float64
	Title             string
	CreatedBy         string
	CreatedAt         string
	OutputPath        string
	OutputGeneratedAt string
	OutputSizeBytes   *int64
	OutputSHA256      string
	ExportStatus      ExportStatus
}

// Duration returns End minus Start.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// OutputMetadataComplete reports whether generated-at, size and digest are all recorded.
func (s Segment) OutputMetadataComplete() bool {
	return s.OutputGeneratedAt != "" && s.OutputSizeBytes != nil && *s.OutputSizeBytes > 0 && s.OutputSHA256 != ""
}

// ReviewType names the kind of exception a review item records.
type ReviewType string

const (
	ReviewNeedsMetadata     ReviewType = "needs_metadata"
	ReviewNeedsBackup       ReviewType = "needs_backup"
	ReviewNeedsSplitReview  ReviewType = "needs_split_review"
	ReviewNeedsExportReview ReviewType = "needs_export_review"
	ReviewNeedsVerification ReviewType = "needs_verification"
)

// ReviewStatus is open until a human or a successful retry resolves it.
type ReviewStatus string

const (
	ReviewOpen     ReviewStatus = "open"
	ReviewResolved ReviewStatus = "resolved"
)

// ReviewItem is a durable exception awaiting human action.
type ReviewItem struct {
	ID        int64
	CreatedAt string
	Status    ReviewStatus
	Type      ReviewType
	TapeID    *int64
	Message   string
	// PayloadJSON is the raw structured payload; empty when none was stored.
	PayloadJSON string
	// TapeCode and TapeTitle are joined in by List for display.
	TapeCode  string
	TapeTitle string
}
