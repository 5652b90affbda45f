package config

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/udisondev/squadnav/internal/field"
	"github.com/udisondev/squadnav/internal/formation"
	"github.com/udisondev/squadnav/internal/geo"
	"github.com/udisondev/squadnav/internal/sim"
)

// Vec converts p to a world vector.
func (p Point) Vec() r2.Vec { return r2.Vec{X: p.X, Y: p.Y} }

// GridSpec returns the grid geometry.
func (c Simulation) GridSpec() geo.GridSpec {
	return geo.GridSpec{
		Origin:     c.Grid.Origin.Vec(),
		Width:      c.Grid.Width,
		Height:     c.Grid.Height,
		CellRadius: c.Grid.CellRadius,
	}
}

// Walkability builds the obstacle oracle for the grid.
func (c Simulation) Walkability() geo.Obstacles {
	obs := geo.BlockedCells(c.GridSpec(), c.Obstacles.Cells...)
	for _, r := range c.Obstacles.Rects {
		obs.Rects = append(obs.Rects, geo.Rect{Min: r.Min.Vec(), Max: r.Max.Vec()})
	}
	for _, ci := range c.Obstacles.Circles {
		obs.Circles = append(obs.Circles, geo.Circle{Center: ci.Center.Vec(), Radius: ci.Radius})
	}
	return obs
}

// Params returns the simulation tuning.
func (c Simulation) Params() sim.Params {
	return sim.Params{
		GoalStrength: c.Fields.GoalStrength,
		Static: field.StaticParams{
			Strength: c.Fields.StaticStrength,
			Radius:   c.Fields.StaticRadius,
		},
		Formation: field.FormationParams{
			Strength:  c.Fields.FormationStrength,
			SlotValue: c.Fields.SlotValue,
			Radius:    c.Fields.FormationRadius,
		},
		Margin:              c.Fields.Margin,
		AgentMass:           c.Agents.Mass,
		AvoidanceRadius:     c.Agents.AvoidanceRadius,
		FollowerSpeedFactor: c.Agents.FollowerSpeedFactor,
		AvoidanceInterval:   c.Timing.AvoidanceInterval,
		FormationInterval:   c.Timing.FormationInterval,
		PathRequestsPerStep: c.Timing.PathRequestsPerStep,
		Planner:             geo.PlannerOptions{AllowDiagonal: c.Pathfinding.AllowDiagonal},
	}
}

// SquadSpecs resolves the configured squads against the formation table.
// A squad naming an unknown formation gets an empty layout and ends up
// inert once added; an unknown heading mode is a hard error.
func (c Simulation) SquadSpecs() ([]sim.SquadSpec, error) {
	specs := make([]sim.SquadSpec, 0, len(c.Squads))
	for _, sq := range c.Squads {
		spec := sim.SquadSpec{
			Name:  sq.Name,
			Speed: sq.Speed,
		}
		if spec.Speed == 0 {
			spec.Speed = c.Agents.Speed
		}

		if f, ok := c.Formations[sq.Formation]; ok {
			spec.Layout = f.Rows
			if f.Mode != "" {
				mode, err := formation.ParseHeadingMode(f.Mode)
				if err != nil {
					return nil, fmt.Errorf("formation %q: %w", sq.Formation, err)
				}
				spec.Mode = mode
			}
		}

		for _, a := range sq.Agents {
			spec.Agents = append(spec.Agents, sim.AgentSpec{
				Position:        a.Position.Vec(),
				Leader:          a.Leader,
				Mass:            a.Mass,
				AvoidanceRadius: a.AvoidanceRadius,
			})
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
