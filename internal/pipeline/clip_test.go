package pipeline

import (
	"errors"
	"math"
	"testing"

	"github.com/go-test/deep"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/jobrunner/geoalgebra/internal/domain"
	"github.com/jobrunner/geoalgebra/internal/geometry"
)

func TestClip(t *testing.T) {
	p := newTestPipeline()
	mask := collection(
		feature(square(0, 0, 10), nil),
		feature(square(3, 3, 1), nil),
	)

	line := orb.LineString{{-5, 5}, {5, 5}}
	source := collection(
		feature(orb.Point{3.5, 3.5}, map[string]interface{}{"kind": "inside both"}),
		feature(orb.Point{10, 5}, map[string]interface{}{"kind": "boundary"}),
		feature(orb.Point{20, 20}, map[string]interface{}{"kind": "outside"}),
		feature(orb.MultiPoint{{1, 1}, {30, 30}}, nil),
		feature(line, nil),
		feature(orb.LineString{{20, 0}, {30, 0}}, nil),
		feature(square(5, 5, 10), map[string]interface{}{"kind": "polygon"}),
	)

	got, err := p.Clip([]*geojson.FeatureCollection{source, geojson.NewFeatureCollection()}, mask)
	if err != nil {
		t.Fatalf("Clip() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("results = %d, want one per source", len(got))
	}
	if len(got[1].Features) != 0 {
		t.Errorf("empty source produced %d features", len(got[1].Features))
	}

	byType := map[string][]*geojson.Feature{}
	for _, f := range got[0].Features {
		byType[f.Geometry.GeoJSONType()] = append(byType[f.Geometry.GeoJSONType()], f)
	}

	if n := len(byType["Point"]); n != 2 {
		t.Errorf("points = %d, want 2", n)
	}
	if mp := byType["MultiPoint"]; len(mp) != 1 {
		t.Errorf("multipoints = %d, want 1", len(mp))
	} else if diff := deep.Equal(mp[0].Geometry, orb.MultiPoint{{1, 1}}); diff != nil {
		t.Error(diff)
	}
	if ls := byType["LineString"]; len(ls) != 1 {
		t.Errorf("lines = %d, want 1", len(ls))
	} else if diff := deep.Equal(ls[0].Geometry, line); diff != nil {
		t.Error(diff)
	}
	if polys := byType["Polygon"]; len(polys) != 1 {
		t.Errorf("polygons = %d, want 1", len(polys))
	} else {
		if a := geometry.PlanarArea(polys[0].Geometry); math.Abs(a-25) > 1e-9 {
			t.Errorf("clipped area = %v, want 25", a)
		}
		if polys[0].Properties["kind"] != "polygon" {
			t.Errorf("properties = %v, want source properties", polys[0].Properties)
		}
	}
}

func TestClipRequiresPolygonMask(t *testing.T) {
	p := newTestPipeline()
	_, err := p.Clip(
		[]*geojson.FeatureCollection{collection(feature(orb.Point{0, 0}, nil))},
		collection(feature(orb.LineString{{0, 0}, {1, 1}}, nil)),
	)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != "mask" {
		t.Errorf("error = %v, want validation error on mask", err)
	}
}
