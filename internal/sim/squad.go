package sim

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/udisondev/squadnav/internal/field"
	"github.com/udisondev/squadnav/internal/formation"
	"github.com/udisondev/squadnav/internal/geo"
)

// SquadID identifies a squad within one Simulation. Squads are numbered
// from 1 in creation order.
type SquadID uint32

var (
	ErrEmptySquad     = errors.New("squad has no agents")
	ErrNoSquadLeader  = errors.New("squad has no leader")
	ErrTooManyLeaders = errors.New("squad has more than one leader")
	ErrSquadInert     = errors.New("squad is inert")
	ErrUnknownSquad   = errors.New("unknown squad")
	ErrUnknownAgent   = errors.New("unknown agent")
)

// SquadSpec describes a squad to create.
type SquadSpec struct {
	Name   string
	Layout [][]int
	Mode   formation.HeadingMode
	Speed  float64
	Agents []AgentSpec
}

// Squad groups agents around one leader and owns the squad's goal and
// formation fields.
type Squad struct {
	ID   SquadID
	Name string

	speed   float64
	agents  []AgentID
	leader  AgentID
	solver  *formation.Solver
	mode    formation.HeadingMode
	err     error
	hasGoal bool
	target  geo.Cell

	goal      *field.Layer
	formation *field.Layer
	task      TaskID
}

// Err returns the configuration error that made the squad inert, or nil.
func (s *Squad) Err() error { return s.err }

// Agents returns the member IDs in squad order.
func (s *Squad) Agents() []AgentID {
	out := make([]AgentID, len(s.agents))
	copy(out, s.agents)
	return out
}

// Leader returns the leader's ID. It is zero for an inert squad without one.
func (s *Squad) Leader() AgentID { return s.leader }

// GoalField returns the current goal field.
func (s *Squad) GoalField() *field.Field { return s.goal.Load() }

// FormationField returns the current formation field.
func (s *Squad) FormationField() *field.Field { return s.formation.Load() }

// Target returns the goal cell and whether a goal has been set.
func (s *Squad) Target() (geo.Cell, bool) { return s.target, s.hasGoal }

// Offsets returns the formation offsets for heading h.
func (s *Squad) Offsets(h formation.Heading) ([]r2.Vec, error) {
	if s.solver == nil {
		return nil, ErrSquadInert
	}
	return s.solver.Offsets(h)
}

func validateAgents(agents []AgentSpec) error {
	if len(agents) == 0 {
		return ErrEmptySquad
	}
	leaders := 0
	for _, a := range agents {
		if a.Leader {
			leaders++
		}
	}
	switch {
	case leaders == 0:
		return ErrNoSquadLeader
	case leaders > 1:
		return fmt.Errorf("%w: found %d", ErrTooManyLeaders, leaders)
	}
	return nil
}

// GoalLayer returns the layer holding the goal field.
func (s *Squad) GoalLayer() *field.Layer { return s.goal }

// FormationLayer returns the layer holding the formation field.
func (s *Squad) FormationLayer() *field.Layer { return s.formation }
