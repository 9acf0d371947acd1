package pipeline

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/jobrunner/geoalgebra/internal/geometry"
)

// Clip restricts every source collection to the polygons of mask. Points
// are kept when they lie inside or on a mask polygon, lines are kept whole
// when they touch one, and polygons are cut to the mask. The result holds
// one collection per source, merged across all mask features and free of
// duplicate geometries.
func (p *Pipeline) Clip(sources []*geojson.FeatureCollection, mask *geojson.FeatureCollection) ([]*geojson.FeatureCollection, error) {
	masks, err := requirePolygons("mask", mask)
	if err != nil {
		return nil, err
	}

	results := make([]*geojson.FeatureCollection, 0, len(sources))
	for _, src := range sources {
		results = append(results, p.clipSource(src, masks))
	}
	return results, nil
}

func (p *Pipeline) clipSource(src *geojson.FeatureCollection, masks []*geojson.Feature) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	if src == nil {
		return out
	}

	seen := geometry.Dedup{}
	emit := func(g orb.Geometry, f *geojson.Feature) {
		if g == nil || !seen.Add(g) {
			return
		}
		out.Append(newFeature(g, f.ID, geometry.CloneProperties(f)))
	}

	for _, m := range masks {
		for _, f := range src.Features {
			if f == nil || !geometry.BoundsOverlap(f.Geometry, m.Geometry) {
				continue
			}
			emit(p.clipFeature(f, m), f)
		}
	}
	return out
}

// clipFeature returns the part of f kept by mask m, or nil.
func (p *Pipeline) clipFeature(f, m *geojson.Feature) orb.Geometry {
	switch g := f.Geometry.(type) {
	case orb.Point:
		if geometry.PointInPolygonal(g, m.Geometry) {
			return g
		}
		return nil
	case orb.MultiPoint:
		var kept orb.MultiPoint
		for _, pt := range g {
			if geometry.PointInPolygonal(pt, m.Geometry) {
				kept = append(kept, pt)
			}
		}
		if len(kept) == 0 {
			return nil
		}
		return kept
	}

	if geometry.IsPolygonal(f.Geometry) {
		if !geometry.Intersects(f.Geometry, m.Geometry) {
			return nil
		}
		g, ok := p.exact(geometry.OpIntersect, f, m)
		if !ok {
			return nil
		}
		return g
	}

	if geometry.Intersects(f.Geometry, m.Geometry) {
		return orb.Clone(f.Geometry)
	}
	return nil
}
