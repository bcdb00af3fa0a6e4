package httpapi

import (
	"encoding/json"

	"tapedeck/internal/database"
	"tapedeck/internal/ingest"
	"tapedeck/internal/library"
	"tapedeck/internal/queue"
)

// JobView is the polling representation of a job.
type JobView struct {
	ID          int64          `json:"id"`
	Type        string         `json:"type"`
	Status      string         `json:"status"`
	Percent     int            `json:"percent"`
	CurrentStep string         `json:"current_step"`
	Detail      string         `json:"detail"`
	TapeID      *int64         `json:"tape_id,omitempty"`
	Result      map[string]any `json:"result"`
	ErrorText   string         `json:"error_text"`
	CreatedAt   string         `json:"created_at"`
	StartedAt   string         `json:"started_at"`
	FinishedAt  string         `json:"finished_at"`
}

// Accepted is returned when a job is queued.
type Accepted struct {
	JobID int64 `json:"job_id"`
}

// ReviewView is one review queue entry.
type ReviewView struct {
	ID        int64           `json:"id"`
	CreatedAt string          `json:"created_at"`
	Status    string          `json:"status"`
	Type      string          `json:"type"`
	TapeID    *int64          `json:"tape_id,omitempty"`
	TapeCode  string          `json:"tape_code,omitempty"`
	TapeTitle string          `json:"tape_title,omitempty"`
	Message   string          `json:"message"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// InboxView is one inbox candidate.
type InboxView struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
	Modified  string `json:"modified"`
	Status    string `json:"status"`
	SHA256    string `json:"sha256,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
}

type ingestRequest struct {
	Filename string `json:"filename" validate:"required"`
	TapeID   int64  `json:"tape_id" validate:"gte=0"`
}

type exportRequest struct {
	Force bool `json:"force"`
}

func jobView(job *queue.Job) (JobView, error) {
	result, err := job.ResultMap()
	if err != nil {
		return JobView{}, err
	}
	view := JobView{
		ID:          job.ID,
		Type:        string(job.Type),
		Status:      string(job.Status),
		Percent:     job.Percent,
		CurrentStep: job.CurrentStep,
		Detail:      job.Detail,
		Result:      result,
		ErrorText:   job.ErrorText,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		FinishedAt:  job.FinishedAt,
	}
	if job.TapeID > 0 {
		id := job.TapeID
		view.TapeID = &id
	}
	return view, nil
}

func reviewView(item library.ReviewItem) ReviewView {
	view := ReviewView{
		ID:        item.ID,
		CreatedAt: item.CreatedAt,
		Status:    string(item.Status),
		Type:      string(item.Type),
		TapeID:    item.TapeID,
		TapeCode:  item.TapeCode,
		TapeTitle: item.TapeTitle,
		Message:   item.Message,
	}
	if item.PayloadJSON != "" && json.Valid([]byte(item.PayloadJSON)) {
		view.Payload = json.RawMessage(item.PayloadJSON)
	}
	return view
}

func inboxView(file ingest.InboxFile) InboxView {
	view := InboxView{
		Name:      file.Name,
		SizeBytes: file.SizeBytes,
		Status:    string(file.Status),
		SHA256:    file.SHA256,
		Error:     file.Error,
	}
	if !file.Modified.IsZero() {
		view.Modified = database.Timestamp(file.Modified)
	}
	return view
}
