package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrJobActive      = errors.New("another job is active")
	ErrNoActiveJob    = errors.New("no active job")
	ErrNotTerminal    = errors.New("job has not reached a terminal status")
	ErrNoResults      = errors.New("no results")
	ErrUnsupported    = errors.New("not supported by backend protocol")
	ErrJobNotFound    = errors.New("job not found")
	ErrUnknownCountry = errors.New("unknown country")
)

// FieldError describes one rejected form field.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError lists every field that kept a request from being built.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether field was rejected.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// SubmissionError means the backend did not create a job.
type SubmissionError struct {
	Cause error
}

func (e *SubmissionError) Error() string { return fmt.Sprintf("submit job: %v", e.Cause) }
func (e *SubmissionError) Unwrap() error { return e.Cause }

// PollError means a status query failed and the poll loop stopped.
type PollError struct {
	JobID string
	Cause error
}

func (e *PollError) Error() string { return fmt.Sprintf("poll job %s: %v", e.JobID, e.Cause) }
func (e *PollError) Unwrap() error { return e.Cause }

// CancellationError means the backend was not told about a cancellation.
// The local job is already cancelled when this is returned.
type CancellationError struct {
	JobID string
	Cause error
}

func (e *CancellationError) Error() string {
	return fmt.Sprintf("notify backend of cancellation for job %s: %v", e.JobID, e.Cause)
}
func (e *CancellationError) Unwrap() error { return e.Cause }

// ExportError means no file was produced. Job state is unaffected.
type ExportError struct {
	JobID string
	Cause error
}

func (e *ExportError) Error() string { return fmt.Sprintf("export job %s: %v", e.JobID, e.Cause) }
func (e *ExportError) Unwrap() error { return e.Cause }

// JobFailure carries the backend's own failure message for a job.
type JobFailure struct {
	Message string
}

func (e *JobFailure) Error() string { return "job failed: " + e.Message }
