package sim

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/udisondev/squadnav/internal/field"
	"github.com/udisondev/squadnav/internal/formation"
)

// AgentID identifies an agent within one Simulation.
type AgentID uint32

// AgentSpec describes an agent to create.
type AgentSpec struct {
	Position        r2.Vec
	Leader          bool
	Mass            float64 // avoidance strength other agents feel
	AvoidanceRadius float64
}

// Agent is one navigating unit. It refers to its squad by ID only.
type Agent struct {
	ID              AgentID
	Squad           SquadID
	Leader          bool
	Position        r2.Vec
	Velocity        r2.Vec
	Heading         formation.Heading
	Mass            float64
	AvoidanceRadius float64
	// SpeedMultiplier scales the squad speed; followers run faster than the
	// leader so they can catch up with their slots.
	SpeedMultiplier float64

	avoidance *field.Layer
	task      TaskID
	dest      r2.Vec // center of the cell chosen this tick
}

// AgentState is the per-tick output for one agent.
type AgentState struct {
	ID       AgentID
	Squad    SquadID
	Leader   bool
	Position r2.Vec
	Velocity r2.Vec
	Heading  formation.Heading
}

func (a *Agent) state() AgentState {
	return AgentState{
		ID:       a.ID,
		Squad:    a.Squad,
		Leader:   a.Leader,
		Position: a.Position,
		Velocity: a.Velocity,
		Heading:  a.Heading,
	}
}
