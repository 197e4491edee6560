package downloader

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapsjob/internal/core/domain"
)

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/download/ok":
			w.Header().Set("Content-Type", "text/csv")
			_, _ = io.WriteString(w, "Name\nChez A\n")
		case "/download/empty":
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"error":"No results found"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	d := NewHTTPDownloader(0)
	ctx := context.Background()

	rc, err := d.Download(ctx, srv.URL+"/download/ok")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "Name\nChez A\n", string(data))

	_, err = d.Download(ctx, srv.URL+"/download/empty")
	assert.ErrorIs(t, err, domain.ErrNoResults)
	assert.Contains(t, err.Error(), "No results found")

	_, err = d.Download(ctx, srv.URL+"/download/missing")
	assert.ErrorContains(t, err, "404")
}
