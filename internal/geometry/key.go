package geometry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Key returns a canonical text form of g. Results produced by the kernel
// are normalized (ring orientation, start vertex and part order), so two
// structurally identical results share a key.
func Key(g orb.Geometry) string {
	if g == nil {
		return ""
	}
	return wkt.MarshalString(g)
}

// Dedup tracks emitted geometries by Key.
type Dedup map[string]struct{}

// Add records g and reports whether it had not been seen before.
func (d Dedup) Add(g orb.Geometry) bool {
	k := Key(g)
	if _, ok := d[k]; ok {
		return false
	}
	d[k] = struct{}{}
	return true
}

// Components splits a polygonal geometry into its connected
// single-polygon parts. The kernel assembles outputs so that every
// polygon of a MultiPolygon is one maximal component.
func Components(g orb.Geometry) []orb.Polygon {
	return Polygons(g)
}

// PlanarArea returns the planar area of the polygonal parts of g.
func PlanarArea(g orb.Geometry) float64 {
	a := 0.0
	for _, p := range Polygons(g) {
		a += planar.Area(p)
	}
	return a
}

// MergeProperties returns a copy of a's properties overlaid with b's;
// b wins on key collisions.
func MergeProperties(a, b *geojson.Feature) geojson.Properties {
	out := geojson.Properties{}
	for _, f := range []*geojson.Feature{a, b} {
		if f == nil {
			continue
		}
		for k, v := range f.Properties {
			out[k] = v
		}
	}
	return out
}

// CloneProperties returns a shallow copy of f's properties.
func CloneProperties(f *geojson.Feature) geojson.Properties {
	return MergeProperties(f, nil)
}
