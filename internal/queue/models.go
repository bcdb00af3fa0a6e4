package queue

import (
	"encoding/json"
	"fmt"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusRunning  Status = "running"
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
	StatusStale    Status = "stale"
)

// StaleReason is stored on jobs found running when the process starts.
const StaleReason = "Job was still running when tapedeck stopped; its outcome is unknown. Submit it again."

// OrphanedReason is stored on jobs found queued when the process starts.
const OrphanedReason = "Job was queued when tapedeck stopped and never ran. Submit it again."

var terminalStatuses = map[Status]struct{}{
	StatusSuccess:  {},
	StatusFailed:   {},
	StatusCanceled: {},
	StatusStale:    {},
}

// Terminal reports whether no further transition is expected.
func (s Status) Terminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// Cancelable reports whether a cancel request is accepted in this status.
func (s Status) Cancelable() bool {
	return s == StatusQueued || s == StatusRunning
}

// Job is one asynchronous unit of work.
type Job struct {
	ID          int64
	Type        Type
	Status      Status
	Percent     int
	CurrentStep string
	Detail      string
	// TapeID is zero when the job is not tied to a tape.
	TapeID      int64
	PayloadJSON string
	ResultJSON  string
	ErrorText   string
	CreatedAt   string
	StartedAt   string
	FinishedAt  string
}

// Payload decodes the job's typed input.
func (j *Job) Payload() (Payload, error) {
	return DecodePayload(j.Type, []byte(j.PayloadJSON))
}

// Result decodes the job's typed output. It returns nil, nil before success.
func (j *Job) Result() (Result, error) {
	if j.ResultJSON == "" {
		return nil, nil
	}
	return DecodeResult(j.Type, []byte(j.ResultJSON))
}

// ResultMap returns the stored result as generic JSON for display surfaces.
func (j *Job) ResultMap() (map[string]any, error) {
	if j.ResultJSON == "" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(j.ResultJSON), &out); err != nil {
		return nil, fmt.Errorf("decode job %d result: %w", j.ID, err)
	}
	return out, nil
}

// Update is a partial job update; nil fields are left unchanged.
type Update struct {
	Percent *int
	Step    *string
	Detail  *string
	Status  *Status
	Result  Result
	Error   *string
}

// Progress builds an update carrying percent, step and detail.
func Progress(percent int, step, detail string) Update {
	return Update{Percent: &percent, Step: &step, Detail: &detail}
}

// ClampPercent bounds p to 0..100.
func ClampPercent(p int) int {
	return max(0, min(100, p))
}
