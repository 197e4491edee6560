package domain

import "time"

// Status is the lifecycle state of a search job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further polling may happen for a job in this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Phase is the controller-level state.
//
//	Idle -> Submitting -> Polling -> {Completed | Failed | Cancelled} -> Idle (Reset)
//	Submitting -> Idle on submission failure
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhasePolling    Phase = "polling"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
	PhaseCancelled  Phase = "cancelled"
)

// Terminal reports whether the phase is one Reset may leave.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseCompleted, PhaseFailed, PhaseCancelled:
		return true
	}
	return false
}

// PhaseFor maps a terminal job status to its controller phase.
func PhaseFor(s Status) Phase {
	switch s {
	case StatusCompleted:
		return PhaseCompleted
	case StatusFailed:
		return PhaseFailed
	case StatusCancelled:
		return PhaseCancelled
	default:
		return PhasePolling
	}
}

// Mode selects how a search is keyed.
type Mode string

const (
	ModeFileBased     Mode = "file"     // dataset of postal codes
	ModeLocationBased Mode = "location" // country + city
)

// Valid reports whether m is a known search mode.
func (m Mode) Valid() bool {
	return m == ModeFileBased || m == ModeLocationBased
}

// Job is a server-tracked extraction task as seen by the client.
type Job struct {
	ID          string     `json:"job_id"`
	Mode        Mode       `json:"mode"`
	Schema      Schema     `json:"schema"`
	Status      Status     `json:"status"`
	Progress    float64    `json:"progress"`
	Keyword     string     `json:"keyword"`
	SubmittedAt time.Time  `json:"submitted_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Snapshot is a read-only copy of the controller state handed to observers.
type Snapshot struct {
	Phase       Phase
	JobID       string
	Mode        Mode
	Schema      Schema
	Status      Status
	Progress    float64
	Records     []Record
	Err         error
	SubmittedAt time.Time
	FinishedAt  time.Time
}

// HasJob reports whether the snapshot refers to a submitted job.
func (s Snapshot) HasJob() bool {
	return s.JobID != ""
}
