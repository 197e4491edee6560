package ports

import (
	"context"
	"io"

	"mapsjob/internal/core/domain"
)

// StatusReport is one answer of the job-status endpoint, normalized across protocol shapes.
type StatusReport struct {
	// Progress is nil when the answer carried no numeric progress.
	Progress *float64
	// Records is nil when the answer carried no result set.
	Records []domain.Record
	// Running is false once the backend stopped working on the job.
	Running bool
	// Outcome is the terminal status signalled when Running is false.
	Outcome domain.Status
	// Message is the backend's failure text, if any.
	Message string
}

// Backend defines the contract for the job endpoints of the extraction service.
type Backend interface {
	// Submit creates a job and returns its backend-issued id.
	Submit(ctx context.Context, sub domain.Submission) (string, error)

	// Status queries the current state of a job.
	Status(ctx context.Context, jobID string) (*StatusReport, error)

	// Cancel asks the backend to abort a job.
	Cancel(ctx context.Context, jobID string) error

	// ExportURL returns where the server-rendered result file for a job can be fetched.
	// Returns domain.ErrUnsupported when the protocol has no such endpoint.
	ExportURL(jobID string, mode domain.Mode) (string, error)

	// Schema returns the record layout the backend produces for a search mode.
	Schema(mode domain.Mode) domain.Schema
}

// Directory defines the contract for resolving selectable countries and cities.
type Directory interface {
	Countries(ctx context.Context) ([]string, error)
	Cities(ctx context.Context, country string) ([]string, error)
}

// Downloader defines the contract for fetching server-rendered files.
type Downloader interface {
	// Download fetches the file at the given URL.
	// Returns a ReadCloser that the caller must close.
	Download(ctx context.Context, fileURL string) (io.ReadCloser, error)
}

// Storage defines the contract for persisting job artifacts.
type Storage interface {
	// InitJob creates the job directory structure.
	InitJob(ctx context.Context, jobID string) error

	// SaveSubmission records what was submitted for the job.
	SaveSubmission(ctx context.Context, jobID string, data []byte) error

	// SaveExport writes an exported result file and returns its path.
	SaveExport(ctx context.Context, jobID string, reader io.Reader, filename string) (string, error)

	// GetJobPath returns the filesystem path for a given job ID.
	GetJobPath(jobID string) string
}
