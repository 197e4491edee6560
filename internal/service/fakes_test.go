package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"mapsjob/internal/config"
	"mapsjob/internal/core/domain"
	"mapsjob/internal/core/ports"
	"mapsjob/internal/logging"
)

const testInterval = 5 * time.Millisecond

type statusFunc func(ctx context.Context, call int) (*ports.StatusReport, error)

// fakeBackend is a scripted ports.Backend.
type fakeBackend struct {
	mu          sync.Mutex
	submitID    string
	submitErr   error
	submitted   []domain.Submission
	status      statusFunc
	statusCalls int
	cancelErr   error
	cancelled   []string
	schema      domain.Schema
}

func (f *fakeBackend) Submit(ctx context.Context, sub domain.Submission) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, sub)
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.submitID, nil
}

func (f *fakeBackend) Status(ctx context.Context, jobID string) (*ports.StatusReport, error) {
	f.mu.Lock()
	f.statusCalls++
	n := f.statusCalls
	fn := f.status
	f.mu.Unlock()
	if fn == nil {
		return running(0), nil
	}
	return fn(ctx, n)
}

func (f *fakeBackend) Cancel(ctx context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, jobID)
	return f.cancelErr
}

func (f *fakeBackend) ExportURL(jobID string, mode domain.Mode) (string, error) {
	if mode == domain.ModeLocationBased {
		return "http://backend/download-search/" + jobID, nil
	}
	return "http://backend/download/" + jobID, nil
}

func (f *fakeBackend) Schema(mode domain.Mode) domain.Schema {
	if f.schema != "" {
		return f.schema
	}
	if mode == domain.ModeLocationBased {
		return domain.SchemaLocation
	}
	return domain.SchemaFile
}

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}

func running(p float64) *ports.StatusReport {
	return &ports.StatusReport{Progress: &p, Running: true}
}

func finished(p float64, records ...domain.Record) *ports.StatusReport {
	return &ports.StatusReport{Progress: &p, Records: records, Running: false, Outcome: domain.StatusCompleted}
}

// script answers call n with steps[n-1] and repeats the last step afterwards.
func script(steps ...*ports.StatusReport) statusFunc {
	return func(_ context.Context, call int) (*ports.StatusReport, error) {
		if call > len(steps) {
			call = len(steps)
		}
		return steps[call-1], nil
	}
}

func newTestController(b *fakeBackend, maxFailures int) *Controller {
	return NewController(b, nil, config.PollConfig{Interval: testInterval, MaxFailures: maxFailures}, logging.Discard())
}

func fileSubmission() domain.Submission {
	return domain.Submission{
		Mode:     domain.ModeFileBased,
		Keyword:  "Restaurants",
		Email:    "ops@example.com",
		RadiusKM: 5,
		Dataset:  &domain.Dataset{Filename: "codes.csv", Content: []byte("75001\n")},
	}
}

// fakeDownloader serves a fixed body or error.
type fakeDownloader struct {
	body string
	err  error
	url  string
}

func (d *fakeDownloader) Download(ctx context.Context, fileURL string) (io.ReadCloser, error) {
	d.url = fileURL
	if d.err != nil {
		return nil, d.err
	}
	return io.NopCloser(strings.NewReader(d.body)), nil
}

// fakeDirectory counts lookups.
type fakeDirectory struct {
	mu             sync.Mutex
	countryLookups int
	cityLookups    int
}

func (d *fakeDirectory) Countries(context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.countryLookups++
	return []string{"France", "Germany"}, nil
}

func (d *fakeDirectory) Cities(_ context.Context, country string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cityLookups++
	if country != "France" {
		return nil, domain.ErrUnknownCountry
	}
	return []string{"Paris", "Lyon"}, nil
}

var errBoom = errors.New("boom")
