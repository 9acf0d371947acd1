package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jobrunner/geoalgebra/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// flakyServer serves a fixed set of files and fails the first failures
// requests of each path with 503.
func flakyServer(t *testing.T, files map[string]string, failures int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var requests atomic.Int32
	seen := make(map[string]*atomic.Int32)
	for name := range files {
		seen["/"+name] = &atomic.Int32{}
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "geo" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		counter, ok := seen[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if counter.Add(1) <= failures {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, files[r.URL.Path[1:]])
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func newTestHTTPStorage(baseURL string, retries int) *HTTPStorage {
	return NewHTTPStorage(HTTPConfig{
		BaseURL:       baseURL + "/",
		Username:      "geo",
		Password:      "secret",
		Timeout:       5 * time.Second,
		MaxRetries:    retries,
		RetryInterval: time.Millisecond,
	}, testLogger())
}

func TestHTTPStorageList(t *testing.T) {
	index := "# layers\nparcels.geojson\n\nhydro.gpkg\nreadme.md\n  zones.json  \n"
	srv, _ := flakyServer(t, map[string]string{"index.txt": index}, 0)

	objects, err := newTestHTTPStorage(srv.URL, 0).List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	want := []string{"parcels.geojson", "hydro.gpkg", "zones.json"}
	if len(objects) != len(want) {
		t.Fatalf("objects = %v, want %v", objects, want)
	}
	for i, key := range want {
		if objects[i].Key != key {
			t.Errorf("objects[%d] = %q, want %q", i, objects[i].Key, key)
		}
	}
}

func TestHTTPStorageRetries(t *testing.T) {
	srv, requests := flakyServer(t, map[string]string{"parcels.geojson": "payload"}, 2)
	s := newTestHTTPStorage(srv.URL, 3)

	dest := filepath.Join(t.TempDir(), "parcels.geojson")
	if err := s.Download(context.Background(), "parcels.geojson", dest); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("requests = %d, want 3", got)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Errorf("content = %q", data)
	}
}

func TestHTTPStorageRetriesExhausted(t *testing.T) {
	srv, requests := flakyServer(t, map[string]string{"parcels.geojson": "payload"}, 10)
	s := newTestHTTPStorage(srv.URL, 2)

	_, err := s.GetReader(context.Background(), "parcels.geojson")

	var storageErr *domain.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("GetReader() error = %v, want StorageError", err)
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("requests = %d, want 3", got)
	}
}

func TestHTTPStorageNotFoundIsNotRetried(t *testing.T) {
	srv, requests := flakyServer(t, map[string]string{}, 0)
	s := newTestHTTPStorage(srv.URL, 5)

	if _, err := s.GetReader(context.Background(), "missing.geojson"); err == nil {
		t.Fatal("GetReader() should fail for a missing file")
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("requests = %d, want 1", got)
	}
}

func TestHTTPStorageExists(t *testing.T) {
	srv, _ := flakyServer(t, map[string]string{"parcels.geojson": "payload"}, 0)
	s := newTestHTTPStorage(srv.URL, 0)

	ok, err := s.Exists(context.Background(), "parcels.geojson")
	if err != nil || !ok {
		t.Errorf("Exists(parcels.geojson) = %v, %v; want true", ok, err)
	}

	ok, err = s.Exists(context.Background(), "missing.geojson")
	if err != nil || ok {
		t.Errorf("Exists(missing.geojson) = %v, %v; want false", ok, err)
	}
}
