package geometry

import (
	"math"

	"github.com/paulmach/orb"
)

// collinearTolerance is relative to the lengths of the two edges meeting
// at a vertex.
const collinearTolerance = 1e-12

// Sanitize returns a copy of g without duplicate consecutive vertices and
// without vertices lying on the straight line between their neighbours.
// Rings that degenerate below three distinct vertices are dropped, and a
// polygon whose shell degenerates is dropped entirely. Points pass through.
func Sanitize(g orb.Geometry) orb.Geometry {
	switch g := g.(type) {
	case orb.Polygon:
		if p := cleanPolygon(g); p != nil {
			return p
		}
		return nil
	case orb.MultiPolygon:
		var out orb.MultiPolygon
		for _, p := range g {
			if c := cleanPolygon(p); c != nil {
				out = append(out, c)
			}
		}
		switch len(out) {
		case 0:
			return nil
		case 1:
			return out[0]
		}
		return out
	case orb.LineString:
		if ls := cleanLine(g); len(ls) >= 2 {
			return ls
		}
		return nil
	case orb.MultiLineString:
		var out orb.MultiLineString
		for _, ls := range g {
			if c := cleanLine(ls); len(c) >= 2 {
				out = append(out, c)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case orb.Collection:
		var out orb.Collection
		for _, c := range g {
			if s := Sanitize(c); s != nil {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}
	return orb.Clone(g)
}

func cleanPolygon(p orb.Polygon) orb.Polygon {
	var out orb.Polygon
	for i, r := range p {
		c := cleanRing(r)
		if c == nil {
			if i == 0 {
				return nil
			}
			continue
		}
		out = append(out, c)
	}
	return out
}

// cleanRing returns a closed ring or nil if fewer than three distinct
// vertices remain.
func cleanRing(r orb.Ring) orb.Ring {
	pts := dedupe(r)
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}

	for len(pts) >= 3 {
		n := len(pts)
		removed := false
		for i := 0; i < n; i++ {
			if collinear(pts[(i+n-1)%n], pts[i], pts[(i+1)%n]) {
				pts = append(pts[:i], pts[i+1:]...)
				removed = true
				break
			}
		}
		if !removed {
			break
		}
	}

	if len(pts) < 3 {
		return nil
	}
	return append(orb.Ring(pts), pts[0])
}

func cleanLine(ls orb.LineString) orb.LineString {
	pts := dedupe(ls)
	if len(pts) < 3 {
		return orb.LineString(pts)
	}
	out := orb.LineString{pts[0]}
	for i := 1; i < len(pts)-1; i++ {
		if collinear(out[len(out)-1], pts[i], pts[i+1]) && between(out[len(out)-1], pts[i], pts[i+1]) {
			continue
		}
		out = append(out, pts[i])
	}
	return append(out, pts[len(pts)-1])
}

func dedupe(pts []orb.Point) []orb.Point {
	out := make([]orb.Point, 0, len(pts))
	for _, p := range pts {
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	return out
}

// collinear reports whether b lies on the line through a and c.
func collinear(a, b, c orb.Point) bool {
	ux, uy := b[0]-a[0], b[1]-a[1]
	vx, vy := c[0]-b[0], c[1]-b[1]
	cross := ux*vy - uy*vx
	return math.Abs(cross) <= collinearTolerance*math.Hypot(ux, uy)*math.Hypot(vx, vy)
}

// between reports whether b lies between a and c on their common line.
func between(a, b, c orb.Point) bool {
	return (b[0]-a[0])*(c[0]-b[0])+(b[1]-a[1])*(c[1]-b[1]) >= 0
}
