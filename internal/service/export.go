package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"mapsjob/internal/config"
	"mapsjob/internal/core/domain"
	"mapsjob/internal/core/ports"
)

// ExportService writes the result set of a job to a tabular file in the job's directory.
// Failures are returned as *domain.ExportError and never touch the job itself.
type ExportService struct {
	backend    ports.Backend
	downloader ports.Downloader
	storage    ports.Storage
	logger     logrus.FieldLogger
}

// NewExportService creates an ExportService.
func NewExportService(backend ports.Backend, downloader ports.Downloader, storage ports.Storage, logger logrus.FieldLogger) *ExportService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ExportService{backend: backend, downloader: downloader, storage: storage, logger: logger}
}

// Export produces the file for snap with the given strategy and returns its path.
// An empty result set fails with domain.ErrNoResults rather than producing an empty file.
func (s *ExportService) Export(ctx context.Context, snap domain.Snapshot, strategy config.ExportStrategy) (string, error) {
	start := time.Now()
	jobID := snap.JobID
	if jobID == "" {
		jobID = uuid.New().String()
	}
	fail := func(err error) (string, error) {
		s.logger.WithField("job_id", jobID).WithError(err).Warn("export failed")
		return "", &domain.ExportError{JobID: jobID, Cause: err}
	}

	if len(snap.Records) == 0 {
		return fail(domain.ErrNoResults)
	}

	var (
		body     io.Reader
		filename string
	)
	switch strategy {
	case config.ExportServer:
		if snap.JobID == "" {
			return fail(fmt.Errorf("server export needs a job id"))
		}
		fileURL, err := s.backend.ExportURL(snap.JobID, snap.Mode)
		if err != nil {
			return fail(err)
		}
		rc, err := s.downloader.Download(ctx, fileURL)
		if err != nil {
			return fail(err)
		}
		defer rc.Close()
		body, filename = rc, exportFilename(jobID, ".csv")
	case config.ExportCSV:
		var buf bytes.Buffer
		if err := WriteCSV(&buf, snap.Schema, snap.Records); err != nil {
			return fail(err)
		}
		body, filename = &buf, exportFilename(jobID, ".csv")
	case config.ExportXLSX:
		var buf bytes.Buffer
		if err := WriteXLSX(&buf, snap.Schema, snap.Records); err != nil {
			return fail(err)
		}
		body, filename = &buf, exportFilename(jobID, ".xlsx")
	default:
		return fail(fmt.Errorf("unsupported export strategy: %s", strategy))
	}

	path, err := s.storage.SaveExport(ctx, jobID, body, filename)
	if err != nil {
		return fail(err)
	}

	s.logger.WithFields(logrus.Fields{
		"job_id":     jobID,
		"strategy":   strategy,
		"rows":       len(snap.Records),
		"path":       path,
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Info("export written")
	return path, nil
}

func exportFilename(jobID, ext string) string {
	name := slug.Make(jobID)
	if name == "" {
		name = "job"
	}
	return "results_" + name + ext
}

// WriteCSV writes a header row and one row per record in the schema's column order.
// Delimiters, quotes and newlines inside values are escaped.
func WriteCSV(w io.Writer, schema domain.Schema, records []domain.Record) error {
	headers := schema.Headers()
	if len(headers) == 0 {
		return fmt.Errorf("unknown schema: %q", schema)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(schema.Row(r)); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

const xlsxSheet = "Results"

// WriteXLSX writes the records as a single-sheet workbook with the same layout as WriteCSV.
func WriteXLSX(w io.Writer, schema domain.Schema, records []domain.Record) error {
	headers := schema.Headers()
	if len(headers) == 0 {
		return fmt.Errorf("unknown schema: %q", schema)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), xlsxSheet); err != nil {
		return err
	}

	write := func(col, row int, v string) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellStr(xlsxSheet, cell, v)
	}

	for i, h := range headers {
		if err := write(i+1, 1, h); err != nil {
			return err
		}
	}
	for r, rec := range records {
		for i, v := range schema.Row(rec) {
			if err := write(i+1, r+2, v); err != nil {
				return err
			}
		}
	}

	last, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(xlsxSheet, "A", last, 24); err != nil {
		return fmt.Errorf("xlsx column width: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}
