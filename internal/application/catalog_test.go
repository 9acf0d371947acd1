package application

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/jobrunner/geoalgebra/internal/domain"
	"github.com/jobrunner/geoalgebra/internal/ports/output"
)

const squareLayer = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"name":"plot"},"geometry":{"type":"Polygon","coordinates":[[[9,50],[9.01,50],[9.01,50.01],[9,50.01],[9,50]]]}}
]}`

func newTestCatalog(t *testing.T, storage *mockStorage, reader *mockReader) (*LayerCatalog, *recordingMetrics) {
	t.Helper()
	metrics := &recordingMetrics{}
	c := NewLayerCatalog(reader, storage, &scaleTransformer{factor: 1000}, metrics, testLogger(), t.TempDir())
	return c, metrics
}

func TestLayerCatalogSync(t *testing.T) {
	storage := &mockStorage{}
	storage.put("parcels.geojson", []byte(squareLayer))
	storage.put("zones.json", []byte(squareLayer))
	storage.put("readme.txt", []byte("ignored"))

	reader := &mockReader{tables: []output.LayerData{
		{Name: "rivers", Features: layer(orb.LineString{{9, 50}, {9.1, 50.1}})},
		{Name: "lakes", Features: layer(square(9, 50, 0.01))},
	}}
	c, metrics := newTestCatalog(t, storage, reader)
	storage.put("hydro.gpkg", []byte("gpkg"))

	ctx := context.Background()
	stats, err := c.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if stats.Added != 3 {
		t.Errorf("added = %d, want 3", stats.Added)
	}

	var ids []string
	for _, info := range c.ListLayers(ctx) {
		ids = append(ids, info.ID)
	}
	want := []string{"hydro.lakes", "hydro.rivers", "parcels", "zones"}
	if len(ids) != len(want) {
		t.Fatalf("layers = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("layers = %v, want %v", ids, want)
			break
		}
	}
	if metrics.layers != 4 {
		t.Errorf("layers metric = %d, want 4", metrics.layers)
	}

	// A second sync finds nothing new.
	stats, err = c.Sync(ctx)
	if err != nil || stats.Added != 0 || stats.Removed != 0 {
		t.Errorf("Sync() = %+v, %v, want no changes", stats, err)
	}

	storage.remove("zones.json")
	stats, err = c.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if stats.Removed != 1 {
		t.Errorf("removed = %d, want 1", stats.Removed)
	}
	if _, err := c.GetLayer(ctx, "zones"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetLayer(zones) error = %v, want ErrNotFound", err)
	}
}

func TestLayerCatalogGetLayer(t *testing.T) {
	storage := &mockStorage{}
	storage.put("parcels.geojson", []byte(squareLayer))
	c, _ := newTestCatalog(t, storage, nil)

	ctx := context.Background()
	if err := c.LoadAll(ctx); err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}

	l, err := c.GetLayer(ctx, "parcels")
	if err != nil {
		t.Fatalf("GetLayer() error = %v", err)
	}
	if l.Format != domain.FormatGeoJSON || l.FeatureCount() != 1 {
		t.Errorf("layer = %+v", l.Info())
	}

	metric, err := c.LayerFeatures(ctx, "parcels", domain.CRSMetric)
	if err != nil {
		t.Fatalf("LayerFeatures() error = %v", err)
	}
	p := metric.Features[0].Geometry.(orb.Polygon)
	if p[0][0] != (orb.Point{9000, 50000}) {
		t.Errorf("metric first vertex = %v, want scaled coordinates", p[0][0])
	}

	_, err = c.GetLayer(ctx, "missing")
	var le *domain.LayerError
	if !errors.As(err, &le) || le.LayerID != "missing" || !errors.Is(err, domain.ErrLayerNotFound) {
		t.Errorf("GetLayer(missing) error = %v", err)
	}
}

func TestLayerCatalogLoadFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	c, _ := newTestCatalog(t, &mockStorage{}, nil)
	ctx := context.Background()

	t.Run("unsupported extension", func(t *testing.T) {
		err := c.LoadFile(ctx, write("notes.txt", "x"))
		if !errors.Is(err, domain.ErrUnsupportedFormat) {
			t.Errorf("error = %v, want ErrUnsupportedFormat", err)
		}
	})

	t.Run("invalid geojson", func(t *testing.T) {
		err := c.LoadFile(ctx, write("broken.geojson", "{"))
		var se *domain.StorageError
		if !errors.As(err, &se) || se.Operation != "decode" {
			t.Errorf("error = %v, want decode storage error", err)
		}
	})

	t.Run("duplicate id from another file", func(t *testing.T) {
		if err := c.LoadFile(ctx, write("roads.geojson", squareLayer)); err != nil {
			t.Fatalf("LoadFile() error = %v", err)
		}
		err := c.LoadFile(ctx, write("roads.json", squareLayer))
		if !errors.Is(err, domain.ErrDuplicateLayerFound) {
			t.Errorf("error = %v, want ErrDuplicateLayerFound", err)
		}
	})

	t.Run("reload replaces layers", func(t *testing.T) {
		path := write("roads.geojson", `{"type":"FeatureCollection","features":[]}`)
		if err := c.LoadFile(ctx, path); err != nil {
			t.Fatalf("LoadFile() error = %v", err)
		}
		l, err := c.Resolve("roads")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if l.FeatureCount() != 0 {
			t.Errorf("features = %d, want the reloaded empty layer", l.FeatureCount())
		}
	})

	t.Run("unload", func(t *testing.T) {
		if n := c.UnloadFile(ctx, filepath.Join(dir, "roads.geojson")); n != 1 {
			t.Errorf("UnloadFile() = %d, want 1", n)
		}
		if c.LayerCount() != 0 {
			t.Errorf("LayerCount() = %d, want 0", c.LayerCount())
		}
	})
}

func TestLayerCatalogResolvesJobRequests(t *testing.T) {
	storage := &mockStorage{}
	storage.put("parcels.geojson", []byte(squareLayer))
	c, _ := newTestCatalog(t, storage, nil)
	if err := c.LoadAll(context.Background()); err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}

	req := &domain.JobRequest{
		ID:       "r1",
		Type:     domain.OpBuffer,
		Layer:    &domain.Operand{Ref: "parcels"},
		Distance: 5,
	}
	job, err := req.Resolve(c.Resolve)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(job.Layer.Features) != 1 {
		t.Errorf("resolved layer features = %d, want 1", len(job.Layer.Features))
	}

	req.Layer = &domain.Operand{Ref: "nope"}
	if _, err := req.Resolve(c.Resolve); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Resolve(nope) error = %v, want ErrNotFound", err)
	}

	req.Layer = &domain.Operand{Collection: geojson.NewFeatureCollection()}
	if _, err := req.Resolve(c.Resolve); err != nil {
		t.Errorf("Resolve(inline) error = %v", err)
	}
}
