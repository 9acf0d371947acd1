package application

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/jobrunner/geoalgebra/internal/domain"
	"github.com/jobrunner/geoalgebra/internal/geometry"
	"github.com/jobrunner/geoalgebra/internal/pipeline"
)

func square(x, y, size float64) orb.Polygon {
	return orb.Polygon{{{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y}}}
}

func layer(geoms ...orb.Geometry) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, g := range geoms {
		fc.Append(geojson.NewFeature(g))
	}
	return fc
}

func newTestExecutor(tr *scaleTransformer, metrics *recordingMetrics, maxVertices int) *Executor {
	p := pipeline.New(nil, metrics, testLogger(), pipeline.Config{})
	return NewExecutor(p, tr, metrics, testLogger(), ExecutorConfig{MaxVertices: maxVertices})
}

func TestExecutorIntersect(t *testing.T) {
	tr := &scaleTransformer{factor: 1000}
	metrics := &recordingMetrics{}
	e := newTestExecutor(tr, metrics, 0)

	resp := e.Execute(context.Background(), &domain.Job{
		ID:   "j1",
		Type: domain.OpIntersect,
		A:    layer(square(0, 0, 1)),
		B:    layer(square(0.5, 0.5, 1)),
	})
	if !resp.OK {
		t.Fatalf("response failed: %s", resp.Error)
	}
	if resp.ID != "j1" || resp.Type != domain.OpIntersect {
		t.Errorf("response = %s/%s, want j1/intersect", resp.ID, resp.Type)
	}
	if got := geometry.PlanarArea(resp.Result.Geographic.Features[0].Geometry); math.Abs(got-0.25) > 1e-9 {
		t.Errorf("geographic area = %v, want 0.25", got)
	}
	if got := geometry.PlanarArea(resp.Result.Metric.Features[0].Geometry); math.Abs(got-250000) > 1e-3 {
		t.Errorf("metric area = %v, want 250000", got)
	}
	if tr.calls != 1 {
		t.Errorf("transformer calls = %d, want the metric result computed once", tr.calls)
	}
	if metrics.jobs["intersect"] != 1 {
		t.Errorf("job metrics = %v", metrics.jobs)
	}
}

func TestExecutorBufferRunsInMetricCRS(t *testing.T) {
	tr := &scaleTransformer{factor: 1000}
	e := newTestExecutor(tr, &recordingMetrics{}, 0)

	resp := e.Execute(context.Background(), &domain.Job{
		ID:       "b1",
		Type:     domain.OpBuffer,
		Layer:    layer(orb.Point{0, 0}),
		Distance: 10,
	})
	if !resp.OK {
		t.Fatalf("response failed: %s", resp.Error)
	}

	metric := geometry.PlanarArea(resp.Result.Metric.Features[0].Geometry)
	if want := math.Pi * 100; math.Abs(metric-want)/want > 0.01 {
		t.Errorf("metric area = %v, want %v within 1%%", metric, want)
	}
	geographic := geometry.PlanarArea(resp.Result.Geographic.Features[0].Geometry)
	if math.Abs(geographic-metric/1e6) > 1e-9 {
		t.Errorf("geographic area = %v, want metric area scaled back", geographic)
	}
}

func TestExecutorClipReturnsOneResultPerSource(t *testing.T) {
	e := newTestExecutor(&scaleTransformer{factor: 1}, &recordingMetrics{}, 0)

	resp := e.Execute(context.Background(), &domain.Job{
		ID:      "c1",
		Type:    domain.OpClip,
		Sources: []*geojson.FeatureCollection{layer(orb.Point{1, 1}), layer(orb.Point{5, 5})},
		Mask:    layer(square(0, 0, 2)),
	})
	if !resp.OK {
		t.Fatalf("response failed: %s", resp.Error)
	}
	if resp.Result != nil {
		t.Error("clip should report per-source results only")
	}
	if len(resp.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(resp.Results))
	}
	if n := len(resp.Results[0].Geographic.Features); n != 1 {
		t.Errorf("first source features = %d, want 1", n)
	}
	if n := len(resp.Results[1].Metric.Features); n != 0 {
		t.Errorf("second source features = %d, want 0", n)
	}
}

func TestExecutorFailures(t *testing.T) {
	tests := []struct {
		name        string
		job         *domain.Job
		maxVertices int
		fail        bool
		wantErr     error
	}{
		{
			name:    "unknown operation",
			job:     &domain.Job{ID: "x", Type: "rotate"},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "empty intersection",
			job:     &domain.Job{ID: "x", Type: domain.OpIntersect, A: layer(square(0, 0, 1)), B: layer(square(5, 5, 1))},
			wantErr: domain.ErrEmptyResult,
		},
		{
			name:    "negative distance",
			job:     &domain.Job{ID: "x", Type: domain.OpBuffer, Layer: layer(orb.Point{0, 0}), Distance: -1},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:        "vertex limit",
			job:         &domain.Job{ID: "x", Type: domain.OpUnion, Layer: layer(square(0, 0, 1), square(2, 0, 1))},
			maxVertices: 6,
			wantErr:     domain.ErrInvalidInput,
		},
		{
			name:    "projection failure",
			job:     &domain.Job{ID: "x", Type: domain.OpUnion, Layer: layer(square(0, 0, 1))},
			fail:    true,
			wantErr: domain.ErrProjectionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := &recordingMetrics{}
			e := newTestExecutor(&scaleTransformer{factor: 1, fail: tt.fail}, metrics, tt.maxVertices)

			resp := e.Execute(context.Background(), tt.job)
			if resp.OK {
				t.Fatal("response succeeded, want failure")
			}
			if resp.ID != tt.job.ID || resp.Error == "" {
				t.Errorf("response = %+v, want id and error message", resp)
			}
			if resp.Result != nil || resp.Results != nil {
				t.Error("failed response carries geometry")
			}
			if !errors.Is(resp.Err(), tt.wantErr) {
				t.Errorf("error = %v, want %v", resp.Err(), tt.wantErr)
			}
			if metrics.failures[string(tt.job.Type)] != 1 {
				t.Errorf("failure metrics = %v", metrics.failures)
			}
		})
	}
}

func TestExecutorAreaFilterEmptyIsNotAnError(t *testing.T) {
	e := newTestExecutor(&scaleTransformer{factor: 1}, &recordingMetrics{}, 0)

	resp := e.Execute(context.Background(), &domain.Job{
		ID:      "a1",
		Type:    domain.OpAreaFilter,
		Layer:   layer(square(0, 0, 0.001)),
		MinArea: 1e12,
	})
	if !resp.OK {
		t.Fatalf("response failed: %s", resp.Error)
	}
	if n := resp.FeatureCount(); n != 0 {
		t.Errorf("features = %d, want 0", n)
	}
}
