package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	return NewClient(Options{BaseURL: baseURL, MaxRetries: 3})
}

func TestClient_Archive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/allCountries.zip", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte("zip bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	path, fetched, err := newTestClient(srv.URL).Archive(context.Background(), "allCountries.zip", dir)
	require.NoError(t, err)
	assert.True(t, fetched)
	assert.Equal(t, filepath.Join(dir, "allCountries.zip"), path)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "zip bytes", string(body))

	etag, err := os.ReadFile(path + ".etag")
	require.NoError(t, err)
	assert.Equal(t, "\"v1\"\n", string(etag))

	_, err = os.Stat(path + ".partial")
	assert.True(t, os.IsNotExist(err), "no partial file left behind")
}

func TestClient_ArchiveSkipsUnchanged(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte("zip bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	c := newTestClient(srv.URL)

	_, fetched, err := c.Archive(context.Background(), "allCountries.zip", dir)
	require.NoError(t, err)
	assert.True(t, fetched)

	path, fetched, err := c.Archive(context.Background(), "allCountries.zip", dir)
	require.NoError(t, err)
	assert.False(t, fetched)
	assert.Equal(t, filepath.Join(dir, "allCountries.zip"), path)
	assert.Equal(t, int64(2), requests.Load())
}

func TestClient_ArchiveRetriesServerErrors(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	_, fetched, err := newTestClient(srv.URL).Archive(context.Background(), "alternateNamesV2.zip", dir)
	require.NoError(t, err)
	assert.True(t, fetched)
	assert.Equal(t, int64(2), requests.Load())
}

func TestClient_ArchiveExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, MaxRetries: 2})
	_, _, err := c.Archive(context.Background(), "allCountries.zip", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retries exhausted")
}

func TestClient_ArchiveMissingFileRedownloads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A stale sidecar without its archive must not trigger a 304 skip.
		assert.Empty(t, r.Header.Get("If-None-Match"))
		w.Write([]byte("fresh"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "allCountries.zip.etag"), []byte(`"v1"`), 0o644))

	_, fetched, err := newTestClient(srv.URL).Archive(context.Background(), "allCountries.zip", dir)
	require.NoError(t, err)
	assert.True(t, fetched)
}
