// Package steering picks each agent's next cell by hill-climbing the summed
// potential field.
package steering

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/udisondev/squadnav/internal/field"
	"github.com/udisondev/squadnav/internal/formation"
	"github.com/udisondev/squadnav/internal/geo"
)

// DefaultMargin is the hysteresis margin used when none is configured.
const DefaultMargin = 1.0

// Input is everything Decide looks at for one agent.
type Input struct {
	Position r2.Vec
	Heading  formation.Heading
	Speed    float64
	// Margin is how much worse than the current cell a neighbour may score
	// and still be taken.
	Margin float64
	Fields field.Stack
	Mode   formation.HeadingMode
}

// Decision is the outcome of one steering step.
type Decision struct {
	Velocity r2.Vec
	Heading  formation.Heading
	Current  geo.Cell
	Target   geo.Cell
	Moved    bool
	Score    float64
}

// Decide evaluates the walkable neighbours of the agent's cell and returns
// the velocity towards the chosen one. When the agent stays, the velocity
// recenters it on its current cell.
func Decide(grid *geo.Grid, in Input) Decision {
	cell := grid.CellAt(in.Position)
	snap := in.Fields.Snapshot()
	current := snap.Sum(cell.X, cell.Y)

	d := Decision{Heading: in.Heading, Current: cell, Target: cell, Score: current}

	var (
		best  float64
		found bool
		next  geo.Cell
	)
	for _, n := range grid.Neighbors(cell) {
		if !n.Walkable {
			continue
		}
		score := snap.Sum(n.X, n.Y)
		if !found || score > best {
			best, next, found = score, n, true
		}
	}
	if !found {
		return d
	}

	// The current cell is the first candidate, so a neighbour that only ties
	// it never pulls the agent away. A worse neighbour within the margin is
	// still taken to escape a local maximum.
	if best != current && best > current-in.Margin {
		d.Target = next
		d.Moved = true
		d.Score = best
		d.Heading = formation.HeadingFromStep(next.X-cell.X, next.Y-cell.Y, in.Mode)
	}

	toward := r2.Sub(d.Target.Center, in.Position)
	if dist := r2.Norm(toward); dist > 0 {
		d.Velocity = r2.Scale(in.Speed/dist, toward)
	}
	return d
}
