package geometry

import (
	"testing"

	"github.com/paulmach/orb"
)

func TestIntersects(t *testing.T) {
	donut := orb.Polygon{
		{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
		{{3, 3}, {3, 7}, {7, 7}, {7, 3}, {3, 3}},
	}

	tests := []struct {
		name string
		a, b orb.Geometry
		want bool
	}{
		{"overlapping squares", square(0, 0, 1), square(0.5, 0.5, 1), true},
		{"edge touching squares", square(0, 0, 1), square(1, 0, 1), true},
		{"corner touching squares", square(0, 0, 1), square(1, 1, 1), true},
		{"disjoint squares", square(0, 0, 1), square(3, 3, 1), false},
		{"bboxes overlap but shapes do not", orb.Polygon{{{0, 0}, {4, 0}, {0, 4}, {0, 0}}}, square(3, 3, 1), false},
		{"square contains square", square(0, 0, 10), square(4, 4, 1), true},
		{"square inside hole", donut, square(4, 4, 1), false},
		{"point inside polygon", square(0, 0, 2), orb.Point{1, 1}, true},
		{"point on boundary", orb.Point{0, 1}, square(0, 0, 2), true},
		{"point outside polygon", orb.Point{3, 3}, square(0, 0, 2), false},
		{"line crossing polygon", orb.LineString{{-1, 0.5}, {3, 0.5}}, square(0, 0, 1), true},
		{"line inside polygon", orb.LineString{{0.2, 0.2}, {0.8, 0.8}}, square(0, 0, 1), true},
		{"line touching vertex", orb.LineString{{1, 1}, {2, 3}}, square(0, 0, 1), true},
		{"line missing polygon", orb.LineString{{2, 0}, {2, 5}}, square(0, 0, 1), false},
		{"crossing lines", orb.LineString{{0, 0}, {2, 2}}, orb.LineString{{0, 2}, {2, 0}}, true},
		{"parallel lines", orb.LineString{{0, 0}, {2, 0}}, orb.LineString{{0, 1}, {2, 1}}, false},
		{"equal points", orb.Point{1, 1}, orb.Point{1, 1}, true},
		{"point on line", orb.Point{1, 1}, orb.LineString{{0, 0}, {2, 2}}, true},
		{"nil operand", nil, square(0, 0, 1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Intersects(tt.a, tt.b); got != tt.want {
				t.Errorf("Intersects() = %v, want %v", got, tt.want)
			}
			if got := Intersects(tt.b, tt.a); got != tt.want {
				t.Errorf("Intersects() reversed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPointInPolygonal(t *testing.T) {
	mp := orb.MultiPolygon{square(0, 0, 1), square(5, 5, 1)}

	tests := []struct {
		name string
		pt   orb.Point
		want bool
	}{
		{"inside first", orb.Point{0.5, 0.5}, true},
		{"inside second", orb.Point{5.5, 5.5}, true},
		{"on edge", orb.Point{1, 0.5}, true},
		{"on vertex", orb.Point{6, 6}, true},
		{"between parts", orb.Point{3, 3}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PointInPolygonal(tt.pt, mp); got != tt.want {
				t.Errorf("PointInPolygonal(%v) = %v, want %v", tt.pt, got, tt.want)
			}
		})
	}
}
