package field

import (
	"errors"
	"fmt"

	"github.com/udisondev/squadnav/internal/geo"
	"gonum.org/v1/gonum/spatial/r2"
)

// ErrUnwalkableTarget is returned when a goal lands on a solid cell.
var ErrUnwalkableTarget = errors.New("goal cell is not walkable")

// Goal builds the attraction field toward target: every walkable cell
// connected to the target cell gets strength/distance to the target
// center. Cells are reached by wavefront expansion and finalized exactly
// once; solid cells are closed up front and keep 0.
func Goal(grid *geo.Grid, target r2.Vec, strength float64) (*Field, geo.Cell, error) {
	targetCell := grid.CellAt(target)
	if !targetCell.Walkable {
		return nil, targetCell, fmt.Errorf("%w: (%d,%d)", ErrUnwalkableTarget, targetCell.X, targetCell.Y)
	}

	f := New(grid)
	closed := make([]bool, grid.Len())
	for y := range grid.SizeY {
		for x := range grid.SizeX {
			if !grid.At(x, y).Walkable {
				closed[grid.Index(x, y)] = true
			}
		}
	}

	f.set(targetCell.X, targetCell.Y, strength/safeDistance(0))
	closed[grid.Index(targetCell.X, targetCell.Y)] = true

	queue := make([]geo.Cell, 0, grid.Len())
	queue = append(queue, targetCell)
	for head := 0; head < len(queue); head++ {
		current := queue[head]
		for _, nb := range grid.Neighbors(current) {
			idx := grid.Index(nb.X, nb.Y)
			if closed[idx] {
				continue
			}
			closed[idx] = true
			f.set(nb.X, nb.Y, strength/safeDistance(geo.Distance(targetCell, nb)))
			queue = append(queue, nb)
		}
	}

	return f, targetCell, nil
}
