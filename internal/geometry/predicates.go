package geometry

import (
	"github.com/ctessum/geom"
	"github.com/paulmach/orb"
)

// BoundsOverlap reports whether the bounding boxes of a and b overlap or
// touch.
func BoundsOverlap(a, b orb.Geometry) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Bound().Intersects(b.Bound())
}

// Intersects reports whether a and b share at least one point, boundary
// contact included.
func Intersects(a, b orb.Geometry) bool {
	if !BoundsOverlap(a, b) {
		return false
	}
	sa, sb := decompose(a), decompose(b)

	for _, s := range sa.segments {
		for _, t := range sb.segments {
			if segmentsIntersect(s[0], s[1], t[0], t[1]) {
				return true
			}
		}
	}

	if sa.touchesPoints(sb) || sb.touchesPoints(sa) {
		return true
	}
	return sa.vertexInside(sb) || sb.vertexInside(sa)
}

// PointInPolygonal reports whether p lies inside or on the boundary of
// the polygonal parts of g.
func PointInPolygonal(p orb.Point, g orb.Geometry) bool {
	for _, poly := range Polygons(g) {
		if !poly.Bound().Contains(p) {
			continue
		}
		if (geom.Point{X: p[0], Y: p[1]}).Within(toGeomPolygon(poly)) != geom.Outside {
			return true
		}
	}
	return false
}

func toGeomPolygon(p orb.Polygon) geom.Polygon {
	out := make(geom.Polygon, len(p))
	for i, r := range p {
		out[i] = toGeomRing(r)
	}
	return out
}

// shape is a geometry broken down into the parts the predicates test.
type shape struct {
	points   []orb.Point    // Point and MultiPoint members
	vertices []orb.Point    // First vertex of every line and ring
	segments [][2]orb.Point // Line and ring edges
	polygons []orb.Polygon  // Polygonal members
}

func decompose(g orb.Geometry) shape {
	var s shape
	s.add(g)
	return s
}

func (s *shape) add(g orb.Geometry) {
	switch g := g.(type) {
	case orb.Point:
		s.points = append(s.points, g)
	case orb.MultiPoint:
		s.points = append(s.points, g...)
	case orb.LineString:
		s.addPath(g)
	case orb.MultiLineString:
		for _, ls := range g {
			s.addPath(ls)
		}
	case orb.Ring:
		s.addPath(orb.LineString(g))
	case orb.Polygon:
		s.polygons = append(s.polygons, g)
		for _, r := range g {
			s.addPath(orb.LineString(r))
		}
	case orb.MultiPolygon:
		for _, p := range g {
			s.add(p)
		}
	case orb.Collection:
		for _, c := range g {
			s.add(c)
		}
	}
}

func (s *shape) addPath(ls orb.LineString) {
	if len(ls) == 0 {
		return
	}
	s.vertices = append(s.vertices, ls[0])
	if len(ls) == 1 {
		s.points = append(s.points, ls[0])
		return
	}
	for i := 1; i < len(ls); i++ {
		s.segments = append(s.segments, [2]orb.Point{ls[i-1], ls[i]})
	}
}

// touchesPoints reports whether any point member of s lies on a point,
// segment or polygon of o.
func (s shape) touchesPoints(o shape) bool {
	for _, p := range s.points {
		for _, q := range o.points {
			if p == q {
				return true
			}
		}
		for _, t := range o.segments {
			if onSegment(p, t[0], t[1]) {
				return true
			}
		}
		for _, poly := range o.polygons {
			if PointInPolygonal(p, poly) {
				return true
			}
		}
	}
	return false
}

// vertexInside reports whether a line or ring of s lies in a polygon of o.
// Without crossing edges, a connected part is either wholly inside or
// wholly outside, so testing one vertex per part is enough.
func (s shape) vertexInside(o shape) bool {
	for _, v := range s.vertices {
		for _, poly := range o.polygons {
			if PointInPolygonal(v, poly) {
				return true
			}
		}
	}
	return false
}

func orientation(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func onSegment(p, a, b orb.Point) bool {
	if orientation(a, b, p) != 0 {
		return false
	}
	return p[0] >= min(a[0], b[0]) && p[0] <= max(a[0], b[0]) &&
		p[1] >= min(a[1], b[1]) && p[1] <= max(a[1], b[1])
}

// segmentsIntersect reports whether segments p1p2 and q1q2 share a point.
func segmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	d1 := orientation(q1, q2, p1)
	d2 := orientation(q1, q2, p2)
	d3 := orientation(p1, p2, q1)
	d4 := orientation(p1, p2, q2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return onSegment(p1, q1, q2) || onSegment(p2, q1, q2) ||
		onSegment(q1, p1, p2) || onSegment(q2, p1, p2)
}
