package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"mapsjob/internal/core/domain"
	"mapsjob/internal/core/ports"
)

// Classic speaks the form-upload protocol:
//
//	POST /upload/              file, keyword, email, location?, radius_km
//	POST /search-by-location/  keyword, email, country, city, radius_km
//	GET  /progress/{id}
//	POST /cancel/{id}
//	GET  /download/{id}, /download-search/{id}
//	GET  /countries, /cities/{country}
type Classic struct {
	client *client
}

func (b *Classic) Submit(ctx context.Context, sub domain.Submission) (string, error) {
	var (
		path    string
		fields  []formField
		dataset *domain.Dataset
	)
	switch sub.Mode {
	case domain.ModeFileBased:
		path = "/upload/"
		dataset = sub.Dataset
		fields = []formField{
			{"keyword", sub.Keyword},
			{"email", sub.Email},
			{"location", sub.Location},
			{"radius_km", formatRadius(sub.RadiusKM)},
		}
	case domain.ModeLocationBased:
		path = "/search-by-location/"
		fields = []formField{
			{"keyword", sub.Keyword},
			{"email", sub.Email},
			{"country", sub.Country},
			{"city", sub.City},
			{"radius_km", formatRadius(sub.RadiusKM)},
		}
	default:
		return "", fmt.Errorf("unsupported search mode: %q", sub.Mode)
	}

	body, contentType, err := multipartBody(fields, dataset)
	if err != nil {
		return "", fmt.Errorf("failed to encode form: %w", err)
	}

	var resp submitResponse
	if err := b.client.do(ctx, http.MethodPost, path, body, contentType, &resp); err != nil {
		return "", err
	}
	return resp.id()
}

type classicProgress struct {
	Progress json.RawMessage `json:"progress"`
	Results  []domain.Record `json:"results"`
	Running  bool            `json:"running"`
	Error    string          `json:"error"`
}

func (b *Classic) Status(ctx context.Context, jobID string) (*ports.StatusReport, error) {
	var resp classicProgress
	if err := b.client.do(ctx, http.MethodGet, "/progress/"+url.PathEscape(jobID), nil, "", &resp); err != nil {
		return nil, err
	}

	report := &ports.StatusReport{
		Progress: progressValue(resp.Progress),
		Records:  resp.Results,
		Running:  resp.Running,
		Message:  resp.Error,
	}
	if !resp.Running {
		report.Outcome = domain.StatusCompleted
		if resp.Error != "" {
			report.Outcome = domain.StatusFailed
		}
	}
	return report, nil
}

func (b *Classic) Cancel(ctx context.Context, jobID string) error {
	return b.client.do(ctx, http.MethodPost, "/cancel/"+url.PathEscape(jobID), nil, "", nil)
}

func (b *Classic) ExportURL(jobID string, mode domain.Mode) (string, error) {
	switch mode {
	case domain.ModeFileBased:
		return b.client.url("/download/" + url.PathEscape(jobID)), nil
	case domain.ModeLocationBased:
		return b.client.url("/download-search/" + url.PathEscape(jobID)), nil
	default:
		return "", fmt.Errorf("unsupported search mode: %q", mode)
	}
}

func (b *Classic) Schema(mode domain.Mode) domain.Schema {
	if mode == domain.ModeLocationBased {
		return domain.SchemaLocation
	}
	return domain.SchemaFile
}

func (b *Classic) Countries(ctx context.Context) ([]string, error) {
	var resp struct {
		Countries []string `json:"countries"`
	}
	if err := b.client.do(ctx, http.MethodGet, "/countries", nil, "", &resp); err != nil {
		return nil, err
	}
	return resp.Countries, nil
}

// Cities returns an empty list when the backend knows the country but no city passes its population floor.
func (b *Classic) Cities(ctx context.Context, country string) ([]string, error) {
	var resp struct {
		Cities  []string `json:"cities"`
		Message string   `json:"message"`
	}
	err := b.client.do(ctx, http.MethodGet, "/cities/"+url.PathEscape(country), nil, "", &resp)
	if errors.Is(err, domain.ErrJobNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownCountry, country)
	}
	if err != nil {
		return nil, err
	}
	if resp.Cities == nil {
		return []string{}, nil
	}
	return resp.Cities, nil
}
