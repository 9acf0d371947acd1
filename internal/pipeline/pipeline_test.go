package pipeline

import (
	"errors"
	"log/slog"
	"math"
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/go-test/deep"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/jobrunner/geoalgebra/internal/domain"
	"github.com/jobrunner/geoalgebra/internal/geometry"
	"github.com/jobrunner/geoalgebra/internal/ports/output"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestPipeline() *Pipeline {
	return New(nil, nil, testLogger(), Config{})
}

func square(x, y, size float64) orb.Polygon {
	return orb.Polygon{{{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y}}}
}

func feature(g orb.Geometry, props map[string]interface{}) *geojson.Feature {
	f := geojson.NewFeature(g)
	for k, v := range props {
		f.Properties[k] = v
	}
	return f
}

func collection(features ...*geojson.Feature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		fc.Append(f)
	}
	return fc
}

func area(fc *geojson.FeatureCollection) float64 {
	total := 0.0
	for _, f := range fc.Features {
		total += geometry.PlanarArea(f.Geometry)
	}
	return total
}

func keys(fc *geojson.FeatureCollection) []string {
	out := make([]string, 0, len(fc.Features))
	for _, f := range fc.Features {
		out = append(out, geometry.Key(f.Geometry))
	}
	sort.Strings(out)
	return out
}

// skipMetrics counts skipped pairs per operation.
type skipMetrics struct {
	output.NoOpMetrics
	mu      sync.Mutex
	skipped map[string]int
}

func (m *skipMetrics) IncSkippedPairs(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.skipped == nil {
		m.skipped = make(map[string]int)
	}
	m.skipped[op]++
}

// failingKernel fails every two-operand call of one operation.
type failingKernel struct {
	geometry.PolyclipKernel
	op geometry.Op
}

func (k failingKernel) Pair(op geometry.Op, a, b *geojson.Feature) (orb.Geometry, *geometry.Failure) {
	if op == k.op {
		return nil, &geometry.Failure{Op: op, Reason: geometry.ReasonFatal, Err: errors.New("scripted")}
	}
	return k.PolyclipKernel.Pair(op, a, b)
}

func TestPipelineSquares(t *testing.T) {
	p := newTestPipeline()
	a := collection(feature(square(0, 0, 1), nil))
	b := collection(feature(square(0.5, 0.5, 1), nil))

	inter, err := p.Intersect(a, b)
	if err != nil {
		t.Fatalf("Intersect() error = %v", err)
	}
	if got := area(inter); math.Abs(got-0.25) > 1e-9 {
		t.Errorf("intersect area = %v, want 0.25", got)
	}

	diff, err := p.Difference(a, b)
	if err != nil {
		t.Fatalf("Difference() error = %v", err)
	}
	if got := area(diff); math.Abs(got-0.75) > 1e-9 {
		t.Errorf("difference area = %v, want 0.75", got)
	}

	union, err := p.Union(collection(a.Features[0], b.Features[0]))
	if err != nil {
		t.Fatalf("Union() error = %v", err)
	}
	if len(union.Features) != 1 {
		t.Fatalf("union features = %d, want 1", len(union.Features))
	}
	if got := area(union); math.Abs(got-1.75) > 1e-9 {
		t.Errorf("union area = %v, want 1.75", got)
	}
}

func TestDifference(t *testing.T) {
	p := newTestPipeline()

	t.Run("keeps untouched features with their properties", func(t *testing.T) {
		kept := feature(square(10, 10, 1), map[string]interface{}{"name": "far"})
		kept.ID = "f1"
		got, err := p.Difference(collection(kept), collection(feature(square(0, 0, 1), nil)))
		if err != nil {
			t.Fatalf("Difference() error = %v", err)
		}
		if diff := deep.Equal(got.Features[0].Geometry, kept.Geometry); diff != nil {
			t.Error(diff)
		}
		if got.Features[0].ID != "f1" || got.Features[0].Properties["name"] != "far" {
			t.Errorf("feature = %+v, want id and properties of the minuend", got.Features[0])
		}
	})

	t.Run("drops consumed features", func(t *testing.T) {
		a := collection(
			feature(square(1, 1, 1), nil),
			feature(square(5, 0.5, 2), nil),
		)
		b := collection(feature(square(0, 0, 4), nil))
		got, err := p.Difference(a, b)
		if err != nil {
			t.Fatalf("Difference() error = %v", err)
		}
		if len(got.Features) != 1 {
			t.Fatalf("features = %d, want 1", len(got.Features))
		}
		if len(got.Features) > len(a.Features) {
			t.Error("difference produced more features than its minuend")
		}
	})

	t.Run("everything consumed", func(t *testing.T) {
		_, err := p.Difference(collection(feature(square(1, 1, 1), nil)), collection(feature(square(0, 0, 4), nil)))
		if !errors.Is(err, domain.ErrEmptyResult) {
			t.Errorf("error = %v, want ErrEmptyResult", err)
		}
	})

	t.Run("no polygons", func(t *testing.T) {
		_, err := p.Difference(collection(feature(orb.Point{0, 0}, nil)), collection(feature(square(0, 0, 1), nil)))
		var ve *domain.ValidationError
		if !errors.As(err, &ve) || ve.Field != "a" {
			t.Errorf("error = %v, want validation error on a", err)
		}
	})
}

func TestDifferenceSkipsFailingSubtrahend(t *testing.T) {
	metrics := &skipMetrics{}
	lib := geometry.NewLibrary(failingKernel{op: geometry.OpDifference}, nil)
	p := New(lib, metrics, testLogger(), Config{})

	a := feature(square(0, 0, 1), nil)
	got, err := p.Difference(collection(a), collection(feature(square(0.5, 0.5, 1), nil)))
	if err != nil {
		t.Fatalf("Difference() error = %v", err)
	}
	if math.Abs(area(got)-1) > 1e-9 {
		t.Errorf("area = %v, want the untouched minuend", area(got))
	}
	if metrics.skipped["difference"] != 1 {
		t.Errorf("skipped = %v, want one difference pair", metrics.skipped)
	}
}

func TestIntersectFailingPairsYieldEmptyResult(t *testing.T) {
	lib := geometry.NewLibrary(failingKernel{op: geometry.OpIntersect}, nil)
	p := New(lib, nil, testLogger(), Config{})

	_, err := p.Intersect(collection(feature(square(0, 0, 1), nil)), collection(feature(square(0.5, 0.5, 1), nil)))
	var empty *domain.EmptyResultError
	if !errors.As(err, &empty) || empty.Operation != "intersect" {
		t.Errorf("error = %v, want empty intersect result", err)
	}
}

func TestIntersect(t *testing.T) {
	p := newTestPipeline()

	t.Run("deduplicates and merges properties", func(t *testing.T) {
		a := collection(
			feature(square(0, 0, 2), map[string]interface{}{"name": "a", "k": 1}),
			feature(square(0, 0, 2), map[string]interface{}{"name": "a", "k": 1}),
		)
		b := collection(feature(square(1, 1, 2), map[string]interface{}{"k": 2}))
		got, err := p.Intersect(a, b)
		if err != nil {
			t.Fatalf("Intersect() error = %v", err)
		}
		if len(got.Features) != 1 {
			t.Fatalf("features = %d, want 1", len(got.Features))
		}
		want := geojson.Properties{"name": "a", "k": 2}
		if diff := deep.Equal(got.Features[0].Properties, want); diff != nil {
			t.Error(diff)
		}
	})

	t.Run("commutative", func(t *testing.T) {
		a := collection(feature(square(0, 0, 2), nil), feature(square(3, 0, 2), nil))
		b := collection(feature(square(1, 1, 3), nil), feature(square(4, -1, 0.5), nil))

		ab, err := p.Intersect(a, b)
		if err != nil {
			t.Fatalf("Intersect(a, b) error = %v", err)
		}
		ba, err := p.Intersect(b, a)
		if err != nil {
			t.Fatalf("Intersect(b, a) error = %v", err)
		}
		if diff := deep.Equal(keys(ab), keys(ba)); diff != nil {
			t.Error(diff)
		}
	})

	t.Run("disjoint", func(t *testing.T) {
		_, err := p.Intersect(collection(feature(square(0, 0, 1), nil)), collection(feature(square(5, 5, 1), nil)))
		if !errors.Is(err, domain.ErrEmptyResult) {
			t.Errorf("error = %v, want ErrEmptyResult", err)
		}
	})
}

func TestUnion(t *testing.T) {
	p := newTestPipeline()

	t.Run("identity", func(t *testing.T) {
		f := feature(square(0, 0, 1), map[string]interface{}{"name": "only"})
		f.ID = 7
		got, err := p.Union(collection(f))
		if err != nil {
			t.Fatalf("Union() error = %v", err)
		}
		if diff := deep.Equal(got.Features[0], f); diff != nil {
			t.Error(diff)
		}
	})

	t.Run("disjoint squares stay separate components", func(t *testing.T) {
		const n = 5
		fc := geojson.NewFeatureCollection()
		for i := 0; i < n; i++ {
			fc.Append(feature(square(float64(i)*3, 0, 1), map[string]interface{}{"i": i}))
		}
		got, err := p.Union(fc)
		if err != nil {
			t.Fatalf("Union() error = %v", err)
		}
		if len(got.Features) != 1 {
			t.Fatalf("features = %d, want 1", len(got.Features))
		}
		if c := geometry.Components(got.Features[0].Geometry); len(c) != n {
			t.Errorf("components = %d, want %d", len(c), n)
		}
		if got.Features[0].Properties["i"] != 0 {
			t.Errorf("properties = %v, want those of the first feature", got.Features[0].Properties)
		}
	})
}

func TestConservation(t *testing.T) {
	p := newTestPipeline()
	a := collection(feature(square(0, 0, 2), nil), feature(square(3, 0.3, 1.1), nil))
	b := collection(feature(square(1.3, 0.7, 2.2), nil))

	diff, err := p.Difference(a, b)
	if err != nil {
		t.Fatalf("Difference() error = %v", err)
	}
	union, err := p.Union(collection(append(append([]*geojson.Feature{}, a.Features...), b.Features...)...))
	if err != nil {
		t.Fatalf("Union() error = %v", err)
	}

	got := area(diff) + area(b)
	if want := area(union); math.Abs(got-want) > 1e-9 {
		t.Errorf("difference + subtrahend = %v, union = %v", got, want)
	}
	if math.Abs(got-8.79) > 1e-9 {
		t.Errorf("area = %v, want 8.79", got)
	}
}
