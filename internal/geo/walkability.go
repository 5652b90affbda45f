package geo

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Walkability answers whether a disc of the given radius around p
// overlaps anything solid.
type Walkability interface {
	Occupied(p r2.Vec, radius float64) bool
}

// WalkabilityFunc adapts a plain function to Walkability.
type WalkabilityFunc func(p r2.Vec, radius float64) bool

// Occupied calls f.
func (f WalkabilityFunc) Occupied(p r2.Vec, radius float64) bool {
	return f(p, radius)
}

// Rect is an axis-aligned solid box.
type Rect struct {
	Min, Max r2.Vec
}

// Circle is a solid disc.
type Circle struct {
	Center r2.Vec
	Radius float64
}

// Obstacles is a static set of solid shapes.
type Obstacles struct {
	Rects   []Rect
	Circles []Circle
}

// Occupied reports whether the disc (p, radius) touches any shape.
// Touching at exactly the boundary does not count.
func (o Obstacles) Occupied(p r2.Vec, radius float64) bool {
	for _, r := range o.Rects {
		closest := r2.Vec{
			X: min(max(p.X, r.Min.X), r.Max.X),
			Y: min(max(p.Y, r.Min.Y), r.Max.Y),
		}
		if r2.Norm2(r2.Sub(p, closest)) < radius*radius {
			return true
		}
	}
	for _, c := range o.Circles {
		reach := c.Radius + radius
		if r2.Norm2(r2.Sub(p, c.Center)) < reach*reach {
			return true
		}
	}
	return false
}

// BlockedCells marks explicit cells as solid on a grid described by spec.
// Used by tests and scenario tooling that think in cell coordinates.
func BlockedCells(spec GridSpec, cells ...[2]int) Obstacles {
	d := spec.CellRadius * 2
	left := spec.Origin.X - math.Round(spec.Width/d)*d/2
	bottom := spec.Origin.Y - math.Round(spec.Height/d)*d/2

	var o Obstacles
	for _, c := range cells {
		// Shrink by a quarter cell so the box never reaches the neighbours.
		inset := d / 4
		minX := left + float64(c[0])*d + inset
		minY := bottom + float64(c[1])*d + inset
		o.Rects = append(o.Rects, Rect{
			Min: r2.Vec{X: minX, Y: minY},
			Max: r2.Vec{X: minX + d - 2*inset, Y: minY + d - 2*inset},
		})
	}
	return o
}
