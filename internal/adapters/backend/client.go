package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"mapsjob/internal/config"
	"mapsjob/internal/core/domain"
	"mapsjob/internal/core/ports"
)

// Service is everything the controller needs from the extraction backend.
type Service interface {
	ports.Backend
	ports.Directory
}

// New returns the backend client for the configured protocol shape.
func New(cfg config.BackendConfig, logger logrus.FieldLogger) (Service, error) {
	c := newClient(cfg, logger)
	switch cfg.Protocol {
	case config.ProtocolClassic:
		return &Classic{client: c}, nil
	case config.ProtocolAPI:
		return &API{client: c}, nil
	default:
		return nil, fmt.Errorf("unsupported backend protocol: %s", cfg.Protocol)
	}
}

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d, body: %s", e.Method, e.Path, e.Code, e.Body)
}

// Is lets callers match a 404 with domain.ErrJobNotFound.
func (e *StatusError) Is(target error) bool {
	return target == domain.ErrJobNotFound && e.Code == http.StatusNotFound
}

// client is the transport shared by both protocol shapes.
type client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  logrus.FieldLogger
}

func newClient(cfg config.BackendConfig, logger logrus.FieldLogger) *client {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	maxFailures := cfg.Breaker.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "backend",
		Timeout: cfg.Breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// Client errors are answers, not an unhealthy backend.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var se *StatusError
			return errors.As(err, &se) && se.Code < http.StatusInternalServerError
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).
				Warn("backend circuit breaker changed state")
		},
	})

	return &client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		breaker: cb,
		logger:  logger,
	}
}

func (c *client) url(path string) string {
	return c.baseURL + path
}

// do sends a request through the circuit breaker and decodes a JSON answer into out (when non-nil).
func (c *client) do(ctx context.Context, method, path string, body []byte, contentType string, out any) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.send(ctx, method, path, body, contentType, out)
	})
	return err
}

func (c *client) send(ctx context.Context, method, path string, body []byte, contentType string, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	reqID := uuid.New().String()
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.WithFields(logrus.Fields{
		"req_id":     reqID,
		"method":     method,
		"path":       path,
		"status":     resp.StatusCode,
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Debug("backend request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// formField is one text part of a multipart submission.
type formField struct {
	name, value string
}

// multipartBody encodes text fields and an optional dataset under the "file" part.
func multipartBody(fields []formField, dataset *domain.Dataset) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if dataset != nil {
		name := dataset.Filename
		if name == "" {
			name = "dataset.csv"
		}
		part, err := w.CreateFormFile("file", name)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, dataset.Reader()); err != nil {
			return nil, "", err
		}
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// taskID accepts the job id as a JSON string or number.
type taskID string

func (t *taskID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = taskID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("task_id must be a string or number: %w", err)
	}
	*t = taskID(n.String())
	return nil
}

type submitResponse struct {
	TaskID  taskID `json:"task_id"`
	Message string `json:"message"`
}

func (r submitResponse) id() (string, error) {
	if r.TaskID == "" {
		return "", errors.New("response carried no task_id")
	}
	return string(r.TaskID), nil
}

// progressValue reads a numeric progress that may be encoded as a number or a numeric string.
// Returns nil when absent or not numeric.
func progressValue(raw json.RawMessage) *float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return &f
		}
	}
	return nil
}

func formatRadius(km float64) string {
	if km == 0 {
		return ""
	}
	return strconv.FormatFloat(km, 'f', -1, 64)
}
