package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"mapsjob/internal/core/domain"
	"mapsjob/internal/core/ports"
)

// API speaks the JSON status protocol:
//
//	POST   /api/search        file?, keyword, location
//	GET    /api/status/{id}
//	DELETE /api/cancel/{id}
//
// It has no export or location directory endpoints.
type API struct {
	client *client
}

func (b *API) Submit(ctx context.Context, sub domain.Submission) (string, error) {
	location := sub.Location
	var dataset *domain.Dataset
	switch sub.Mode {
	case domain.ModeFileBased:
		dataset = sub.Dataset
	case domain.ModeLocationBased:
		location = joinLocation(sub.City, sub.Country)
	default:
		return "", fmt.Errorf("unsupported search mode: %q", sub.Mode)
	}

	body, contentType, err := multipartBody([]formField{
		{"keyword", sub.Keyword},
		{"location", location},
	}, dataset)
	if err != nil {
		return "", fmt.Errorf("failed to encode form: %w", err)
	}

	var resp submitResponse
	if err := b.client.do(ctx, http.MethodPost, "/api/search", body, contentType, &resp); err != nil {
		return "", err
	}
	return resp.id()
}

type apiStatus struct {
	Status   string          `json:"status"`
	Progress json.RawMessage `json:"progress"`
	Results  []domain.Record `json:"results"`
	Error    string          `json:"error"`
}

func (b *API) Status(ctx context.Context, jobID string) (*ports.StatusReport, error) {
	var resp apiStatus
	if err := b.client.do(ctx, http.MethodGet, "/api/status/"+url.PathEscape(jobID), nil, "", &resp); err != nil {
		return nil, err
	}

	report := &ports.StatusReport{
		Progress: progressValue(resp.Progress),
		Records:  resp.Results,
		Running:  true,
		Message:  resp.Error,
	}
	switch strings.ToLower(strings.TrimSpace(resp.Status)) {
	case "completed", "complete", "done", "finished", "success", "succeeded":
		report.Running = false
		report.Outcome = domain.StatusCompleted
	case "failed", "error":
		report.Running = false
		report.Outcome = domain.StatusFailed
	case "cancelled", "canceled", "stopped", "aborted":
		report.Running = false
		report.Outcome = domain.StatusCancelled
	case "pending", "queued", "running", "processing", "in_progress", "started":
	default:
		// An error without a running status (e.g. "Task not found") ends the job.
		if resp.Error != "" {
			report.Running = false
			report.Outcome = domain.StatusFailed
		}
	}
	return report, nil
}

func (b *API) Cancel(ctx context.Context, jobID string) error {
	return b.client.do(ctx, http.MethodDelete, "/api/cancel/"+url.PathEscape(jobID), nil, "", nil)
}

func (b *API) ExportURL(string, domain.Mode) (string, error) {
	return "", domain.ErrUnsupported
}

func (b *API) Schema(mode domain.Mode) domain.Schema {
	if mode == domain.ModeLocationBased {
		return domain.SchemaLocationRated
	}
	return domain.SchemaFile
}

func (b *API) Countries(context.Context) ([]string, error) {
	return nil, domain.ErrUnsupported
}

func (b *API) Cities(context.Context, string) ([]string, error) {
	return nil, domain.ErrUnsupported
}

func joinLocation(city, country string) string {
	switch {
	case city == "":
		return country
	case country == "":
		return city
	default:
		return city + ", " + country
	}
}
