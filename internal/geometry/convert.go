package geometry

import (
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// IsPolygonal reports whether g is a Polygon, a MultiPolygon, or a
// non-empty collection made only of those.
func IsPolygonal(g orb.Geometry) bool {
	switch g := g.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return true
	case orb.Collection:
		if len(g) == 0 {
			return false
		}
		for _, c := range g {
			if !IsPolygonal(c) {
				return false
			}
		}
		return true
	}
	return false
}

// Polygons flattens the polygonal parts of g, including collection
// members, into a list of polygons.
func Polygons(g orb.Geometry) []orb.Polygon {
	switch g := g.(type) {
	case orb.Polygon:
		return []orb.Polygon{g}
	case orb.MultiPolygon:
		return append([]orb.Polygon(nil), g...)
	case orb.Collection:
		var out []orb.Polygon
		for _, c := range g {
			out = append(out, Polygons(c)...)
		}
		return out
	}
	return nil
}

// toGeom converts polygons into the clipping kernel's representation.
// Rings are passed open; the kernel closes contours implicitly.
func toGeom(polys []orb.Polygon) geom.MultiPolygon {
	out := make(geom.MultiPolygon, 0, len(polys))
	for _, p := range polys {
		gp := make(geom.Polygon, 0, len(p))
		for _, r := range p {
			n := len(r)
			if n > 1 && r[0] == r[n-1] {
				n--
			}
			if n < 3 {
				continue
			}
			ring := make([]geom.Point, n)
			for i := 0; i < n; i++ {
				ring[i] = geom.Point{X: r[i][0], Y: r[i][1]}
			}
			gp = append(gp, ring)
		}
		if len(gp) > 0 {
			out = append(out, gp)
		}
	}
	return out
}

// fromGeom assembles the unordered rings produced by the kernel into
// polygons. A nil geometry is returned for an empty result.
func fromGeom(p geom.Polygon) orb.Geometry {
	rings := make([]orb.Ring, 0, len(p))
	for _, gr := range p {
		r := make(orb.Ring, 0, len(gr)+1)
		for _, pt := range gr {
			op := orb.Point{pt.X, pt.Y}
			if len(r) > 0 && r[len(r)-1] == op {
				continue
			}
			r = append(r, op)
		}
		if len(r) > 1 && r[0] == r[len(r)-1] {
			r = r[:len(r)-1]
		}
		if len(r) < 3 {
			continue
		}
		r = append(r, r[0])
		if planar.Area(r) == 0 {
			continue
		}
		rings = append(rings, r)
	}
	return assemble(rings)
}

// assemble groups closed rings into polygons by nesting depth: rings at
// even depth are shells, rings at odd depth are holes of the smallest
// shell containing them.
func assemble(rings []orb.Ring) orb.Geometry {
	if len(rings) == 0 {
		return nil
	}

	depth := make([]int, len(rings))
	for i := range rings {
		for j := range rings {
			if i != j && ringInside(rings[i], rings[j]) {
				depth[i]++
			}
		}
	}

	var shells []int
	shellOf := make(map[int]int)
	for i := range rings {
		if depth[i]%2 == 0 {
			shellOf[i] = len(shells)
			shells = append(shells, i)
		}
	}

	polys := make([]orb.Polygon, len(shells))
	for k, i := range shells {
		polys[k] = orb.Polygon{orient(rings[i], orb.CCW)}
	}

	for i := range rings {
		if depth[i]%2 == 0 {
			continue
		}
		parent := -1
		for _, s := range shells {
			if depth[s] != depth[i]-1 || !ringInside(rings[i], rings[s]) {
				continue
			}
			if parent < 0 || math.Abs(planar.Area(rings[s])) < math.Abs(planar.Area(rings[parent])) {
				parent = s
			}
		}
		if parent < 0 {
			continue
		}
		k := shellOf[parent]
		polys[k] = append(polys[k], orient(rings[i], orb.CW))
	}

	for _, p := range polys {
		sort.Slice(p[1:], func(a, b int) bool { return pointLess(p[1+a][0], p[1+b][0]) })
	}
	sort.Slice(polys, func(a, b int) bool { return pointLess(polys[a][0][0], polys[b][0][0]) })

	if len(polys) == 1 {
		return polys[0]
	}
	return orb.MultiPolygon(polys)
}

// ringInside reports whether ring a lies inside ring b, judged by the
// first vertex of a that is not on b's boundary.
func ringInside(a, b orb.Ring) bool {
	if !b.Bound().Intersects(a.Bound()) {
		return false
	}
	gb := geom.Polygon{toGeomRing(b)}
	for _, p := range a {
		switch (geom.Point{X: p[0], Y: p[1]}).Within(gb) {
		case geom.Inside:
			return true
		case geom.Outside:
			return false
		}
	}
	return false
}

func toGeomRing(r orb.Ring) []geom.Point {
	out := make([]geom.Point, len(r))
	for i, p := range r {
		out[i] = geom.Point{X: p[0], Y: p[1]}
	}
	return out
}

// orient returns r wound in the requested direction and rotated to start
// at its lowest vertex.
func orient(r orb.Ring, o orb.Orientation) orb.Ring {
	open := r.Clone()[:len(r)-1]
	if r.Orientation() != o {
		open.Reverse()
	}

	start := 0
	for i := range open {
		if pointLess(open[i], open[start]) {
			start = i
		}
	}
	out := make(orb.Ring, 0, len(open)+1)
	out = append(out, open[start:]...)
	out = append(out, open[:start]...)
	return append(out, out[0])
}

func pointLess(a, b orb.Point) bool {
	if a[0] != b[0] {
		return a[0] < b[0]
	}
	return a[1] < b[1]
}

// finiteGeometry reports whether every coordinate of g is finite.
func finiteGeometry(g orb.Geometry) bool {
	for _, p := range Polygons(g) {
		for _, r := range p {
			for _, pt := range r {
				if math.IsNaN(pt[0]) || math.IsNaN(pt[1]) || math.IsInf(pt[0], 0) || math.IsInf(pt[1], 0) {
					return false
				}
			}
		}
	}
	return true
}
