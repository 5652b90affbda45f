package geo

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

var (
	ErrInvalidExtent = errors.New("grid extent must be positive")
	ErrInvalidRadius = errors.New("cell radius must be positive")
	ErrEmptyGrid     = errors.New("grid has no cells")
)

// GridSpec describes the world area covered by a Grid.
type GridSpec struct {
	Origin     r2.Vec // world-space center of the grid
	Width      float64
	Height     float64
	CellRadius float64
}

// Cell is one square of the navigation lattice.
type Cell struct {
	X, Y     int
	Center   r2.Vec
	Walkable bool
}

// Grid is a uniform cell lattice over the world.
// Immutable after NewGrid and safe to share between goroutines.
type Grid struct {
	SizeX, SizeY int

	cells      []Cell
	extent     r2.Vec
	bottomLeft r2.Vec
	cellRadius float64
}

// NewGrid discretizes spec into cells and queries the walkability oracle
// once per cell center.
func NewGrid(spec GridSpec, oracle Walkability) (*Grid, error) {
	if spec.Width <= 0 || spec.Height <= 0 {
		return nil, ErrInvalidExtent
	}
	if spec.CellRadius <= 0 {
		return nil, ErrInvalidRadius
	}

	diameter := spec.CellRadius * 2
	sizeX := int(math.Round(spec.Width / diameter))
	sizeY := int(math.Round(spec.Height / diameter))
	if sizeX <= 0 || sizeY <= 0 {
		return nil, fmt.Errorf("%w: %.2fx%.2f with cell diameter %.2f", ErrEmptyGrid, spec.Width, spec.Height, diameter)
	}

	// The lattice spans whole cells, which may differ slightly from the
	// requested extent after rounding.
	extent := r2.Vec{X: float64(sizeX) * diameter, Y: float64(sizeY) * diameter}
	g := &Grid{
		SizeX:      sizeX,
		SizeY:      sizeY,
		cells:      make([]Cell, sizeX*sizeY),
		extent:     extent,
		bottomLeft: r2.Sub(spec.Origin, r2.Scale(0.5, extent)),
		cellRadius: spec.CellRadius,
	}

	blocked := 0
	for y := range sizeY {
		for x := range sizeX {
			center := r2.Add(g.bottomLeft, r2.Vec{
				X: float64(x)*diameter + spec.CellRadius,
				Y: float64(y)*diameter + spec.CellRadius,
			})
			walkable := oracle == nil || !oracle.Occupied(center, spec.CellRadius)
			if !walkable {
				blocked++
			}
			g.cells[y*sizeX+x] = Cell{X: x, Y: y, Center: center, Walkable: walkable}
		}
	}

	slog.Debug("grid built", "sizeX", sizeX, "sizeY", sizeY, "blocked", blocked)
	return g, nil
}

// CellDiameter returns the side length of one cell in world units.
func (g *Grid) CellDiameter() float64 {
	return g.cellRadius * 2
}

// CellRadius returns half of CellDiameter.
func (g *Grid) CellRadius() float64 {
	return g.cellRadius
}

// Len returns the number of cells.
func (g *Grid) Len() int {
	return len(g.cells)
}

// Index returns the dense array index of (x, y). Callers check InBounds first.
func (g *Grid) Index(x, y int) int {
	return y*g.SizeX + x
}

// InBounds reports whether (x, y) addresses a cell.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.SizeX && y >= 0 && y < g.SizeY
}

// At returns the cell at (x, y). Out-of-range coordinates are clamped.
func (g *Grid) At(x, y int) Cell {
	x = min(max(x, 0), g.SizeX-1)
	y = min(max(y, 0), g.SizeY-1)
	return g.cells[g.Index(x, y)]
}

// CellAt maps a world point to the cell whose center is nearest.
// Points outside the grid clamp to the border cells.
func (g *Grid) CellAt(p r2.Vec) Cell {
	percentX := clamp01((p.X - g.bottomLeft.X) / g.extent.X)
	percentY := clamp01((p.Y - g.bottomLeft.Y) / g.extent.Y)

	// Cell centers sit at integer positions in lattice space.
	x := int(math.Round(percentX*float64(g.SizeX) - 0.5))
	y := int(math.Round(percentY*float64(g.SizeY) - 0.5))
	return g.At(x, y)
}

// Neighbors returns the up to 8 cells around c in row-major order
// (dy outer, dx inner), clipped to grid bounds.
func (g *Grid) Neighbors(c Cell) []Cell {
	out := make([]Cell, 0, 8)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := c.X+dx, c.Y+dy
			if !g.InBounds(nx, ny) {
				continue
			}
			out = append(out, g.cells[g.Index(nx, ny)])
		}
	}
	return out
}

// Distance returns the world distance between two cell centers.
func Distance(a, b Cell) float64 {
	return r2.Norm(r2.Sub(a.Center, b.Center))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
