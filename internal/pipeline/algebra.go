package pipeline

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/jobrunner/geoalgebra/internal/domain"
	"github.com/jobrunner/geoalgebra/internal/geometry"
)

// Difference subtracts every feature of b from every feature of a. A
// feature of a that is consumed entirely is dropped, so the result never
// holds more features than a. Results keep the properties of a.
func (p *Pipeline) Difference(a, b *geojson.FeatureCollection) (*geojson.FeatureCollection, error) {
	as, err := requirePolygons("a", a)
	if err != nil {
		return nil, err
	}
	bs, err := requirePolygons("b", b)
	if err != nil {
		return nil, err
	}

	out := geojson.NewFeatureCollection()
	for _, fa := range as {
		running := fa.Geometry
		changed := false
		consumed := false

		for _, fb := range bs {
			if !candidate(running, fb.Geometry) {
				continue
			}
			g, ok := p.exact(geometry.OpDifference, newFeature(running, nil, fa.Properties), fb)
			if !ok {
				continue
			}
			if g == nil {
				consumed = true
				break
			}
			running = g
			changed = true
		}

		if consumed {
			continue
		}
		if !changed {
			running = orb.Clone(running)
		}
		out.Append(newFeature(running, fa.ID, geometry.CloneProperties(fa)))
	}

	if len(out.Features) == 0 {
		return nil, &domain.EmptyResultError{Operation: string(domain.OpDifference)}
	}
	return out, nil
}

// Intersect returns the pairwise intersections of a and b. Each distinct
// geometry is emitted once with the properties of both operands merged,
// b overriding a.
func (p *Pipeline) Intersect(a, b *geojson.FeatureCollection) (*geojson.FeatureCollection, error) {
	as, err := requirePolygons("a", a)
	if err != nil {
		return nil, err
	}
	bs, err := requirePolygons("b", b)
	if err != nil {
		return nil, err
	}

	out := geojson.NewFeatureCollection()
	seen := geometry.Dedup{}
	for _, fa := range as {
		for _, fb := range bs {
			if !candidate(fa.Geometry, fb.Geometry) {
				continue
			}
			g, ok := p.exact(geometry.OpIntersect, fa, fb)
			if !ok || g == nil || !seen.Add(g) {
				continue
			}
			out.Append(newFeature(g, nil, geometry.MergeProperties(fa, fb)))
		}
	}

	if len(out.Features) == 0 {
		return nil, &domain.EmptyResultError{Operation: string(domain.OpIntersect)}
	}
	return out, nil
}

// Union merges all polygon features of fc into one feature carrying the
// properties of the first. A single feature is returned unchanged.
func (p *Pipeline) Union(fc *geojson.FeatureCollection) (*geojson.FeatureCollection, error) {
	fs, err := requirePolygons("layer", fc)
	if err != nil {
		return nil, err
	}

	out := geojson.NewFeatureCollection()
	if len(fs) == 1 {
		out.Append(newFeature(orb.Clone(fs[0].Geometry), fs[0].ID, geometry.CloneProperties(fs[0])))
		return out, nil
	}

	g, stats := p.lib.UnionAll(fs)
	p.logUnion(string(domain.OpUnion), stats)
	if g == nil {
		return nil, &domain.EmptyResultError{Operation: string(domain.OpUnion)}
	}
	out.Append(newFeature(g, nil, geometry.CloneProperties(fs[0])))
	return out, nil
}

func (p *Pipeline) logUnion(operation string, stats geometry.UnionStats) {
	if stats.Skipped > 0 {
		for i := 0; i < stats.Skipped; i++ {
			p.metrics.IncSkippedPairs(operation)
		}
		p.logger.Debug("union skipped features",
			"operation", operation,
			"merged", stats.Merged,
			"skipped", stats.Skipped,
		)
	}
}
