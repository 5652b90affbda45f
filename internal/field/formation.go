package field

import (
	"math"

	"github.com/udisondev/squadnav/internal/geo"
	"gonum.org/v1/gonum/spatial/r2"
)

// FormationParams configures the formation attraction field.
type FormationParams struct {
	Strength  float64
	SlotValue float64 // value placed on the slot cells themselves
	Radius    float64 // world units around the nearest slot
}

// FormationSlots resolves leader-relative offsets (in cells) to absolute
// walkable cells. Offsets that leave the grid or land on solid cells are
// dropped.
func FormationSlots(grid *geo.Grid, leader geo.Cell, offsets []r2.Vec) []geo.Cell {
	slots := make([]geo.Cell, 0, len(offsets))
	for _, off := range offsets {
		x := leader.X + int(math.Round(off.X))
		y := leader.Y + int(math.Round(off.Y))
		if !grid.InBounds(x, y) {
			continue
		}
		c := grid.At(x, y)
		if !c.Walkable {
			continue
		}
		slots = append(slots, c)
	}
	return slots
}

// Formation builds a pure attraction field pulling followers onto the
// formation slots around leader.
func Formation(grid *geo.Grid, leader geo.Cell, offsets []r2.Vec, p FormationParams) *Field {
	f := New(grid)
	slots := FormationSlots(grid, leader, offsets)
	if len(slots) == 0 {
		return f
	}

	isSlot := make(map[int]struct{}, len(slots))
	minX, minY := grid.SizeX, grid.SizeY
	maxX, maxY := -1, -1
	for _, s := range slots {
		isSlot[grid.Index(s.X, s.Y)] = struct{}{}
		f.set(s.X, s.Y, p.SlotValue)
		minX, minY = min(minX, s.X), min(minY, s.Y)
		maxX, maxY = max(maxX, s.X), max(maxY, s.Y)
	}

	// Only cells within Radius of some slot can be non-zero.
	reach := int(math.Ceil(p.Radius / grid.CellDiameter()))
	minX, minY = max(minX-reach, 0), max(minY-reach, 0)
	maxX, maxY = min(maxX+reach, grid.SizeX-1), min(maxY+reach, grid.SizeY-1)

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			c := grid.At(x, y)
			if !c.Walkable {
				continue
			}
			if _, ok := isSlot[grid.Index(x, y)]; ok {
				continue
			}
			d := nearestSlotDistance(c, slots)
			if d > p.Radius {
				continue
			}
			f.set(x, y, p.Strength/safeDistance(d))
		}
	}
	return f
}

func nearestSlotDistance(c geo.Cell, slots []geo.Cell) float64 {
	best := math.MaxFloat64
	for _, s := range slots {
		if d := geo.Distance(c, s); d < best {
			best = d
		}
	}
	return best
}
