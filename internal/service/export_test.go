package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"mapsjob/internal/adapters/localstorage"
	"mapsjob/internal/config"
	"mapsjob/internal/core/domain"
	"mapsjob/internal/logging"
)

var sampleRecords = []domain.Record{
	{PostalCode: "75001", Name: "Chez \"A\", Paris", Address: "1 Rue X\nParis", Phone: "+33 1", Website: domain.NotAvailable, MapsURL: "https://maps/a", City: "Paris", Country: "France"},
	{PostalCode: "69001", Name: "B", Address: "2 Rue Y", Website: "https://b.example", City: "Lyon", Country: "France"},
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, domain.SchemaFile, sampleRecords))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Postal Code", "Name", "Address", "Phone", "Website", "Google Maps URL", "City", "Country"}, rows[0])
	assert.Equal(t, []string{"75001", "Chez \"A\", Paris", "1 Rue X\nParis", "+33 1", "Not Available", "https://maps/a", "Paris", "France"}, rows[1])
	assert.Equal(t, "69001", rows[2][0])
}

func TestWriteCSVRatedSchema(t *testing.T) {
	var buf bytes.Buffer
	records := []domain.Record{{Name: "A", Address: "Addr", Phone: "1", Website: "w", Rating: "4.5", Reviews: "120", PostalCode: "10115"}}
	require.NoError(t, WriteCSV(&buf, domain.SchemaLocationRated, records))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Address", "Phone", "Website", "Rating", "Reviews", "Postal Code"}, rows[0])
	assert.Equal(t, []string{"A", "Addr", "1", "w", "4.5", "120", "10115"}, rows[1])
}

func TestWriteCSVUnknownSchema(t *testing.T) {
	assert.Error(t, WriteCSV(&bytes.Buffer{}, "", sampleRecords))
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, domain.SchemaLocation, sampleRecords))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(xlsxSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, domain.SchemaLocation.Headers(), rows[0])
	assert.Equal(t, "Chez \"A\", Paris", rows[1][0])
	assert.Equal(t, "https://b.example", rows[2][3])
}

func newTestExporter(t *testing.T, dl *fakeDownloader) (*ExportService, *localstorage.LocalStorage) {
	t.Helper()
	store := localstorage.NewLocalStorage(t.TempDir())
	return NewExportService(&fakeBackend{}, dl, store, logging.Discard()), store
}

func completedSnapshot(mode domain.Mode, schema domain.Schema) domain.Snapshot {
	return domain.Snapshot{
		Phase:   domain.PhaseCompleted,
		JobID:   "abc123",
		Mode:    mode,
		Schema:  schema,
		Status:  domain.StatusCompleted,
		Records: sampleRecords,
	}
}

func TestExportCSV(t *testing.T) {
	svc, store := newTestExporter(t, &fakeDownloader{})

	path, err := svc.Export(context.Background(), completedSnapshot(domain.ModeFileBased, domain.SchemaFile), config.ExportCSV)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.GetJobPath("abc123"), "results_abc123.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1+len(sampleRecords))
}

func TestExportXLSX(t *testing.T) {
	svc, _ := newTestExporter(t, &fakeDownloader{})

	path, err := svc.Export(context.Background(), completedSnapshot(domain.ModeLocationBased, domain.SchemaLocation), config.ExportXLSX)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "results_abc123.xlsx"))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(xlsxSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestExportServer(t *testing.T) {
	dl := &fakeDownloader{body: "Name,Address\nA,B\n"}
	svc, _ := newTestExporter(t, dl)

	path, err := svc.Export(context.Background(), completedSnapshot(domain.ModeLocationBased, domain.SchemaLocation), config.ExportServer)
	require.NoError(t, err)
	assert.Equal(t, "http://backend/download-search/abc123", dl.url)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, dl.body, string(data))
}

func TestExportFailures(t *testing.T) {
	t.Run("no results", func(t *testing.T) {
		svc, store := newTestExporter(t, &fakeDownloader{})
		snap := completedSnapshot(domain.ModeFileBased, domain.SchemaFile)
		snap.Records = nil

		_, err := svc.Export(context.Background(), snap, config.ExportCSV)
		var eerr *domain.ExportError
		require.ErrorAs(t, err, &eerr)
		assert.ErrorIs(t, err, domain.ErrNoResults)
		assert.NoDirExists(t, store.GetJobPath("abc123"))
	})

	t.Run("download fails", func(t *testing.T) {
		svc, _ := newTestExporter(t, &fakeDownloader{err: domain.ErrNoResults})
		_, err := svc.Export(context.Background(), completedSnapshot(domain.ModeFileBased, domain.SchemaFile), config.ExportServer)
		var eerr *domain.ExportError
		require.ErrorAs(t, err, &eerr)
		assert.Equal(t, "abc123", eerr.JobID)
	})

	t.Run("unknown strategy", func(t *testing.T) {
		svc, _ := newTestExporter(t, &fakeDownloader{})
		_, err := svc.Export(context.Background(), completedSnapshot(domain.ModeFileBased, domain.SchemaFile), "pdf")
		var eerr *domain.ExportError
		assert.ErrorAs(t, err, &eerr)
	})
}

func TestExportDoesNotTouchJob(t *testing.T) {
	b := &fakeBackend{submitID: "abc123", status: script(finished(100))}
	c := newTestController(b, 1)
	snap, err := c.Run(context.Background(), fileSubmission())
	require.NoError(t, err)

	svc, _ := newTestExporter(t, &fakeDownloader{})
	_, err = svc.Export(context.Background(), snap, config.ExportCSV)
	require.Error(t, err)

	assert.Equal(t, domain.StatusCompleted, c.Snapshot().Status)
	assert.NoError(t, c.Snapshot().Err)
}
