package localstorage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// LocalStorage implements ports.Storage for the local filesystem.
// Every job gets its own directory under <BaseDir>/jobs/.
type LocalStorage struct {
	BaseDir string
}

// NewLocalStorage creates a new LocalStorage instance.
func NewLocalStorage(baseDir string) *LocalStorage {
	return &LocalStorage{BaseDir: baseDir}
}

// InitJob creates the job directory.
func (s *LocalStorage) InitJob(ctx context.Context, jobID string) error {
	path := s.GetJobPath(jobID)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create job directory %s: %w", path, err)
	}
	return nil
}

// SaveSubmission saves what was submitted for the job.
func (s *LocalStorage) SaveSubmission(ctx context.Context, jobID string, data []byte) error {
	if err := s.InitJob(ctx, jobID); err != nil {
		return err
	}
	path := filepath.Join(s.GetJobPath(jobID), "submission.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save submission.json: %w", err)
	}
	return nil
}

// SaveExport writes an exported result file into the job directory.
// The file is written under a temporary name and renamed once complete, so a failed
// copy never leaves a truncated export behind.
func (s *LocalStorage) SaveExport(ctx context.Context, jobID string, reader io.Reader, filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("export filename is required")
	}
	if err := s.InitJob(ctx, jobID); err != nil {
		return "", err
	}
	path := filepath.Join(s.GetJobPath(jobID), filepath.Base(filename))

	file, err := os.CreateTemp(s.GetJobPath(jobID), ".export-*")
	if err != nil {
		return "", fmt.Errorf("failed to create export file for %s: %w", path, err)
	}
	tmp := file.Name()
	defer os.Remove(tmp)

	if _, err := io.Copy(file, reader); err != nil {
		file.Close()
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to close export file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("failed to move export file into place: %w", err)
	}
	return path, nil
}

// GetJobPath returns the path for a job directory.
// Backend ids are opaque, so they are slugged before touching the filesystem.
func (s *LocalStorage) GetJobPath(jobID string) string {
	return filepath.Join(s.BaseDir, "jobs", JobDirName(jobID))
}

// JobDirName turns an opaque job id into a safe path element.
// Ids that slugging alters (case, separators) get a short suffix derived from the exact id,
// so "AbC" and "abc" never share a directory.
func JobDirName(jobID string) string {
	name := slug.Make(jobID)
	if name == jobID && name != "" {
		return name
	}
	if name == "" {
		name = "job"
	}
	return name + "-" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(jobID)).String()[:8]
}
