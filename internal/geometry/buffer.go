package geometry

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// DefaultSegments is the number of vertices used to approximate a circle.
const DefaultSegments = 64

// Buffer expands g by distance in its own planar units. Points become
// regular polygons, line segments become capsules, and polygons are
// merged with capsules along all of their rings. A nil geometry is
// returned when g has no positions.
func (l *Library) Buffer(g orb.Geometry, distance float64, segments int) (orb.Geometry, UnionStats) {
	if segments < 8 {
		segments = DefaultSegments
	}
	pieces := bufferPieces(g, distance, segments)
	switch len(pieces) {
	case 0:
		return nil, UnionStats{}
	case 1:
		return pieces[0].Geometry, UnionStats{Merged: 1}
	}
	return l.UnionAll(pieces)
}

func bufferPieces(g orb.Geometry, d float64, n int) []*geojson.Feature {
	var out []*geojson.Feature
	add := func(p orb.Polygon) {
		out = append(out, geojson.NewFeature(p))
	}

	switch g := g.(type) {
	case orb.Point:
		add(circle(g, d, n))
	case orb.MultiPoint:
		for _, p := range g {
			add(circle(p, d, n))
		}
	case orb.LineString:
		for _, p := range capsules(g, d, n) {
			add(p)
		}
	case orb.MultiLineString:
		for _, ls := range g {
			for _, p := range capsules(ls, d, n) {
				add(p)
			}
		}
	case orb.Ring:
		return bufferPieces(orb.Polygon{g}, d, n)
	case orb.Polygon:
		if c := cleanPolygon(g); c != nil {
			add(c)
			for _, r := range c {
				for _, p := range capsules(orb.LineString(r), d, n) {
					add(p)
				}
			}
		}
	case orb.MultiPolygon:
		for _, p := range g {
			out = append(out, bufferPieces(p, d, n)...)
		}
	case orb.Collection:
		for _, c := range g {
			out = append(out, bufferPieces(c, d, n)...)
		}
	}
	return out
}

// circle returns a counter-clockwise regular polygon around c. Vertices
// sit at half-step angles so they never coincide with capsule corners.
func circle(c orb.Point, r float64, n int) orb.Polygon {
	ring := make(orb.Ring, 0, n+1)
	step := 2 * math.Pi / float64(n)
	for i := 0; i < n; i++ {
		a := (float64(i) + 0.5) * step
		ring = append(ring, orb.Point{c[0] + r*math.Cos(a), c[1] + r*math.Sin(a)})
	}
	return orb.Polygon{append(ring, ring[0])}
}

// capsules covers a path with one circle per distinct vertex and one
// rectangle per segment.
func capsules(ls orb.LineString, d float64, n int) []orb.Polygon {
	pts := cleanLine(ls)
	vertices := pts
	if len(pts) > 2 && pts[0] == pts[len(pts)-1] {
		vertices = pts[:len(pts)-1]
	}

	out := make([]orb.Polygon, 0, 2*len(pts))
	for _, p := range vertices {
		out = append(out, circle(p, d, n))
	}
	for i := 1; i < len(pts); i++ {
		if r := segmentRect(pts[i-1], pts[i], d); r != nil {
			out = append(out, r)
		}
	}
	return out
}

func segmentRect(a, b orb.Point, d float64) orb.Polygon {
	dx, dy := b[0]-a[0], b[1]-a[1]
	length := math.Hypot(dx, dy)
	if length == 0 {
		return nil
	}
	nx, ny := -dy/length*d, dx/length*d
	return orb.Polygon{{
		{a[0] - nx, a[1] - ny},
		{b[0] - nx, b[1] - ny},
		{b[0] + nx, b[1] + ny},
		{a[0] + nx, a[1] + ny},
		{a[0] - nx, a[1] - ny},
	}}
}
