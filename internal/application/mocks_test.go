package application

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"

	"github.com/jobrunner/geoalgebra/internal/domain"
	"github.com/jobrunner/geoalgebra/internal/ports/output"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// mockStorage implements output.ObjectStorage over in-memory files.
type mockStorage struct {
	mu          sync.Mutex
	files       map[string][]byte
	downloadErr error
	listErr     error
}

func (m *mockStorage) put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	m.files[key] = data
}

func (m *mockStorage) remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, key)
}

func (m *mockStorage) List(_ context.Context) ([]output.StorageObject, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	objects := make([]output.StorageObject, 0, len(m.files))
	for key, data := range m.files {
		objects = append(objects, output.StorageObject{Key: key, Size: int64(len(data))})
	}
	return objects, nil
}

func (m *mockStorage) Download(_ context.Context, key, dest string) error {
	if m.downloadErr != nil {
		return m.downloadErr
	}
	m.mu.Lock()
	data, ok := m.files[key]
	m.mu.Unlock()
	if !ok {
		return domain.ErrNotFound
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}

func (m *mockStorage) GetReader(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *mockStorage) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[key]
	return ok, nil
}

// mockReader implements output.LayerReader.
type mockReader struct {
	tables []output.LayerData
	err    error
}

func (m *mockReader) ReadLayers(_ context.Context, _ string) ([]output.LayerData, error) {
	return m.tables, m.err
}

// scaleTransformer implements output.CoordinateTransformer by scaling
// degrees into pretend meters.
type scaleTransformer struct {
	factor float64
	fail   bool
	calls  int
	mu     sync.Mutex
}

func (m *scaleTransformer) Forward(fc *geojson.FeatureCollection) (*geojson.FeatureCollection, error) {
	return m.collection(fc, 1/m.factor)
}

func (m *scaleTransformer) Inverse(fc *geojson.FeatureCollection) (*geojson.FeatureCollection, error) {
	return m.collection(fc, m.factor)
}

func (m *scaleTransformer) ForwardGeometry(g orb.Geometry) (orb.Geometry, error) {
	return scale(g, 1/m.factor), nil
}

func (m *scaleTransformer) InverseGeometry(g orb.Geometry) (orb.Geometry, error) {
	return scale(g, m.factor), nil
}

func (m *scaleTransformer) collection(fc *geojson.FeatureCollection, f float64) (*geojson.FeatureCollection, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.fail {
		return nil, &domain.ProjectionError{Direction: "inverse", Err: errors.New("scripted")}
	}
	out := geojson.NewFeatureCollection()
	for _, feat := range fc.Features {
		nf := geojson.NewFeature(scale(feat.Geometry, f))
		nf.ID = feat.ID
		nf.Properties = feat.Properties.Clone()
		out.Append(nf)
	}
	return out, nil
}

func scale(g orb.Geometry, f float64) orb.Geometry {
	if g == nil {
		return nil
	}
	return project.Geometry(orb.Clone(g), func(p orb.Point) orb.Point {
		return orb.Point{p[0] * f, p[1] * f}
	})
}

// recordingMetrics records the job and queue metrics it receives.
type recordingMetrics struct {
	output.NoOpMetrics
	mu       sync.Mutex
	jobs     map[string]int
	failures map[string]int
	layers   int
}

func (m *recordingMetrics) IncJobCount(op string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.jobs == nil {
		m.jobs = make(map[string]int)
		m.failures = make(map[string]int)
	}
	if success {
		m.jobs[op]++
	} else {
		m.failures[op]++
	}
}

func (m *recordingMetrics) ObserveJobDuration(_ string, _ time.Duration) {}

func (m *recordingMetrics) SetLayersLoaded(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.layers = n
}

// funcRunner adapts a function to Runner.
type funcRunner func(ctx context.Context, job *domain.Job) domain.Response

func (f funcRunner) Execute(ctx context.Context, job *domain.Job) domain.Response {
	return f(ctx, job)
}
