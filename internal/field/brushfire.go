package field

import (
	"github.com/udisondev/squadnav/internal/geo"
)

// Source is one repulsive seed for a brushfire expansion.
type Source struct {
	Cell     geo.Cell
	Strength float64
	Radius   float64 // world units; cells farther away are untouched
}

// Static builds the obstacle repulsion field. Only boundary obstacles (solid
// cells with at least one walkable neighbour) seed the expansion; every solid
// cell is set to Forbidden.
func Static(grid *geo.Grid, strength, radius float64) *Field {
	f := New(grid)

	var seeds []Source
	for y := range grid.SizeY {
		for x := range grid.SizeX {
			c := grid.At(x, y)
			if c.Walkable {
				continue
			}
			f.set(x, y, Forbidden)
			if isBoundary(grid, c) {
				seeds = append(seeds, Source{Cell: c, Strength: strength, Radius: radius})
			}
		}
	}

	brushfire(grid, f, seeds)
	return f
}

// Avoidance builds an agent repulsion field from the given agent positions.
func Avoidance(grid *geo.Grid, sources []Source) *Field {
	f := New(grid)
	brushfire(grid, f, sources)
	return f
}

// BoundaryObstacles lists the solid cells that touch walkable space,
// in row-major order.
func BoundaryObstacles(grid *geo.Grid) []geo.Cell {
	var out []geo.Cell
	for y := range grid.SizeY {
		for x := range grid.SizeX {
			c := grid.At(x, y)
			if !c.Walkable && isBoundary(grid, c) {
				out = append(out, c)
			}
		}
	}
	return out
}

func isBoundary(grid *geo.Grid, c geo.Cell) bool {
	for _, nb := range grid.Neighbors(c) {
		if nb.Walkable {
			return true
		}
	}
	return false
}

// brushfire expands from every source through walkable cells inside the
// source's radius and keeps the most negative -(strength/distance) per cell.
func brushfire(grid *geo.Grid, f *Field, sources []Source) {
	if len(sources) == 0 {
		return
	}

	visited := make([]int, grid.Len()) // generation stamp per cell
	queue := make([]geo.Cell, 0, 64)

	for i, src := range sources {
		gen := i + 1
		queue = queue[:0]

		visited[grid.Index(src.Cell.X, src.Cell.Y)] = gen
		if src.Cell.Walkable {
			relax(f, src.Cell, -src.Strength/safeDistance(0))
		}
		queue = append(queue, src.Cell)

		for head := 0; head < len(queue); head++ {
			for _, nb := range grid.Neighbors(queue[head]) {
				idx := grid.Index(nb.X, nb.Y)
				if visited[idx] == gen || !nb.Walkable {
					continue
				}
				visited[idx] = gen

				d := geo.Distance(src.Cell, nb)
				if d > src.Radius {
					continue
				}
				relax(f, nb, -src.Strength/safeDistance(d))
				queue = append(queue, nb)
			}
		}
	}
}

func relax(f *Field, c geo.Cell, v float64) {
	if v < f.At(c.X, c.Y) {
		f.set(c.X, c.Y, v)
	}
}
