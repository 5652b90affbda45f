// Package sim ties the grid, the field engine, the path planner and the
// squads together into one explicitly owned simulation context.
package sim

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/udisondev/squadnav/internal/field"
	"github.com/udisondev/squadnav/internal/formation"
	"github.com/udisondev/squadnav/internal/geo"
	"github.com/udisondev/squadnav/internal/steering"
)

// Params holds the tuning constants of a simulation.
type Params struct {
	GoalStrength float64
	Static       field.StaticParams
	Formation    field.FormationParams
	Margin       float64

	// Agent defaults, used when an AgentSpec leaves them zero.
	AgentMass       float64
	AvoidanceRadius float64

	FollowerSpeedFactor float64
	AvoidanceInterval   time.Duration
	FormationInterval   time.Duration
	PathRequestsPerStep int
	Planner             geo.PlannerOptions
}

// DefaultParams returns the reference tuning.
func DefaultParams() Params {
	return Params{
		GoalStrength:        100,
		Static:              field.StaticParams{Strength: 10, Radius: 2},
		Formation:           field.FormationParams{Strength: 10, SlotValue: 20, Radius: 30},
		Margin:              steering.DefaultMargin,
		AgentMass:           1.5,
		AvoidanceRadius:     2,
		FollowerSpeedFactor: 2,
		AvoidanceInterval:   50 * time.Millisecond,
		FormationInterval:   250 * time.Millisecond,
		PathRequestsPerStep: 1,
		Planner:             geo.DefaultPlannerOptions(),
	}
}

// Simulation owns every piece of navigation state. It is not safe for
// concurrent use: Step and the mutating calls belong to one goroutine.
// Published fields may be read from anywhere.
type Simulation struct {
	grid   *geo.Grid
	params Params
	engine *field.Engine
	paths  *geo.RequestQueue
	sched  *Scheduler

	agents    map[AgentID]*Agent
	squads    map[SquadID]*Squad
	nextAgent AgentID
	nextSquad SquadID

	elapsed time.Duration
	ticks   uint64
}

// New builds a simulation over grid and computes the static field.
func New(grid *geo.Grid, p Params) *Simulation {
	s := &Simulation{
		grid:   grid,
		params: p,
		engine: field.NewEngine(grid, p.Static),
		paths:  geo.NewRequestQueue(geo.NewPlanner(grid, p.Planner)),
		sched:  NewScheduler(),
		agents: make(map[AgentID]*Agent),
		squads: make(map[SquadID]*Squad),
	}

	slog.Info("simulation created",
		"sizeX", grid.SizeX,
		"sizeY", grid.SizeY,
		"cellDiameter", grid.CellDiameter())
	return s
}

// Grid returns the navigation grid.
func (s *Simulation) Grid() *geo.Grid { return s.grid }

// Params returns the tuning the simulation was built with.
func (s *Simulation) Params() Params { return s.params }

// Elapsed returns the simulated time.
func (s *Simulation) Elapsed() time.Duration { return s.elapsed }

// Ticks returns the number of completed steps.
func (s *Simulation) Ticks() uint64 { return s.ticks }

// AddSquad creates a squad and its agents. A squad with a configuration
// error is still registered, but stays inert: its agents exist and repel
// others, yet never move. Check Squad.Err.
func (s *Simulation) AddSquad(spec SquadSpec) SquadID {
	s.nextSquad++
	id := s.nextSquad
	sq := &Squad{
		ID:        id,
		Name:      spec.Name,
		speed:     spec.Speed,
		mode:      spec.Mode,
		goal:      field.NewLayer(fmt.Sprintf("goal-%d", id), s.grid),
		formation: field.NewLayer(fmt.Sprintf("formation-%d", id), s.grid),
	}
	s.squads[id] = sq

	err := validateAgents(spec.Agents)
	layout, layoutErr := formation.ParseLayout(spec.Layout)
	if err == nil && layoutErr != nil {
		err = layoutErr
	}

	for _, as := range spec.Agents {
		a := s.addAgent(sq, as)
		if a.Leader && sq.leader == 0 {
			sq.leader = a.ID
		}
	}

	if err != nil {
		s.makeInert(sq, err)
		return id
	}

	sq.solver = formation.NewSolver(layout, spec.Mode)
	sq.task = s.sched.Every(s.params.FormationInterval, func() { s.refreshFormation(sq) })

	slog.Info("squad created",
		"squad", id,
		"name", spec.Name,
		"agents", len(sq.agents),
		"slots", layout.Followers(),
		"mode", spec.Mode)
	return id
}

// AddAgent joins a new agent to an active squad.
func (s *Simulation) AddAgent(id SquadID, spec AgentSpec) (AgentID, error) {
	sq, ok := s.squads[id]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownSquad, id)
	}
	if sq.err != nil {
		return 0, fmt.Errorf("squad %d: %w", id, ErrSquadInert)
	}
	if spec.Leader {
		return 0, fmt.Errorf("squad %d: %w", id, ErrTooManyLeaders)
	}
	return s.addAgent(sq, spec).ID, nil
}

func (s *Simulation) addAgent(sq *Squad, spec AgentSpec) *Agent {
	s.nextAgent++
	a := &Agent{
		ID:              s.nextAgent,
		Squad:           sq.ID,
		Leader:          spec.Leader,
		Position:        spec.Position,
		Heading:         formation.Down,
		Mass:            spec.Mass,
		AvoidanceRadius: spec.AvoidanceRadius,
		SpeedMultiplier: 1,
	}
	if a.Mass == 0 {
		a.Mass = s.params.AgentMass
	}
	if a.AvoidanceRadius == 0 {
		a.AvoidanceRadius = s.params.AvoidanceRadius
	}
	if !a.Leader {
		a.SpeedMultiplier = s.params.FollowerSpeedFactor
	}

	// IDs are never reused, so registration cannot collide.
	layer, _ := s.engine.RegisterAgent(uint32(a.ID))
	a.avoidance = layer
	a.task = s.sched.Every(s.params.AvoidanceInterval, func() { s.refreshAvoidance(a) })

	s.agents[a.ID] = a
	sq.agents = append(sq.agents, a.ID)
	return a
}

// RemoveAgent deletes an agent and stops its refresh task. Removing a
// squad's leader or last member makes the squad inert.
func (s *Simulation) RemoveAgent(id AgentID) error {
	a, ok := s.agents[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownAgent, id)
	}
	s.dropAgent(a)

	sq := s.squads[a.Squad]
	sq.agents = slices.DeleteFunc(sq.agents, func(m AgentID) bool { return m == id })
	switch {
	case sq.err != nil:
	case len(sq.agents) == 0:
		s.makeInert(sq, ErrEmptySquad)
	case sq.leader == id:
		sq.leader = 0
		s.makeInert(sq, ErrNoSquadLeader)
	}
	return nil
}

// RemoveSquad deletes a squad together with its agents and tasks.
func (s *Simulation) RemoveSquad(id SquadID) error {
	sq, ok := s.squads[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownSquad, id)
	}
	for _, aid := range sq.agents {
		s.dropAgent(s.agents[aid])
	}
	s.sched.Cancel(sq.task)
	delete(s.squads, id)

	slog.Info("squad removed", "squad", id, "name", sq.Name)
	return nil
}

func (s *Simulation) dropAgent(a *Agent) {
	s.sched.Cancel(a.task)
	s.engine.UnregisterAgent(uint32(a.ID))
	delete(s.agents, a.ID)
}

func (s *Simulation) makeInert(sq *Squad, err error) {
	sq.err = fmt.Errorf("squad %d (%s): %w", sq.ID, sq.Name, err)
	sq.solver = nil
	s.sched.Cancel(sq.task)
	sq.task = 0
	for _, aid := range sq.agents {
		s.agents[aid].Velocity = r2.Vec{}
	}
	slog.Warn("squad inert", "squad", sq.ID, "name", sq.Name, "err", err)
}

// SetGoal regenerates the goal field of a squad. A target on a solid cell
// is rejected and the previous goal stays in place.
func (s *Simulation) SetGoal(id SquadID, target r2.Vec) error {
	sq, ok := s.squads[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownSquad, id)
	}
	if sq.err != nil {
		return fmt.Errorf("squad %d: %w", id, ErrSquadInert)
	}

	f, cell, err := field.Goal(s.grid, target, s.params.GoalStrength)
	if err != nil {
		slog.Warn("goal rejected", "squad", id, "x", cell.X, "y", cell.Y)
		return fmt.Errorf("setting goal for squad %d: %w", id, err)
	}
	sq.goal.Publish(f)
	sq.target, sq.hasGoal = cell, true

	slog.Info("goal set", "squad", id, "x", cell.X, "y", cell.Y)
	return nil
}

// RequestPath queues an A* query. cb runs inside a later Step.
func (s *Simulation) RequestPath(start, end r2.Vec, cb geo.PathCallback) uint64 {
	return s.paths.Submit(start, end, cb)
}

// PendingPaths returns the number of queued path requests.
func (s *Simulation) PendingPaths() int { return s.paths.Pending() }

// Step advances the simulation by dt: due field refreshes run, queued path
// requests are served, every agent decides, then every agent moves.
func (s *Simulation) Step(dt time.Duration) {
	s.elapsed += dt
	s.ticks++

	s.sched.Advance(s.elapsed)
	s.paths.Pump(s.params.PathRequestsPerStep)

	for _, id := range s.SquadIDs() {
		sq := s.squads[id]
		if sq.err != nil {
			continue
		}
		for _, aid := range sq.agents {
			s.steer(sq, s.agents[aid])
		}
	}

	secs := dt.Seconds()
	for _, a := range s.agents {
		s.integrate(a, secs)
	}

	if IsDebugEnabled() {
		slog.Debug("step", "tick", s.ticks, "elapsed", s.elapsed, "agents", len(s.agents))
	}
}

func (s *Simulation) steer(sq *Squad, a *Agent) {
	var stack field.Stack
	if a.Leader {
		if !sq.hasGoal {
			a.Velocity = r2.Vec{}
			return
		}
		stack = field.Stack{s.engine.Static(), sq.goal, a.avoidance}
	} else {
		stack = field.Stack{s.engine.Static(), sq.formation, a.avoidance}
	}

	d := steering.Decide(s.grid, steering.Input{
		Position: a.Position,
		Heading:  a.Heading,
		Speed:    sq.speed * a.SpeedMultiplier,
		Margin:   s.params.Margin,
		Fields:   stack,
		Mode:     sq.mode,
	})
	a.Velocity = d.Velocity
	a.Heading = d.Heading
	a.dest = d.Target.Center
}

// integrate moves a by its velocity. An agent that would pass the center of
// its chosen cell stops on it instead.
func (s *Simulation) integrate(a *Agent, secs float64) {
	if a.Velocity == (r2.Vec{}) {
		return
	}
	move := r2.Scale(secs, a.Velocity)
	if r2.Norm(move) >= r2.Norm(r2.Sub(a.dest, a.Position)) {
		a.Position = a.dest
		a.Velocity = r2.Vec{}
		return
	}
	a.Position = r2.Add(a.Position, move)
}

// refreshAvoidance rebuilds the field a steers against. Leaders ignore
// their own squad; followers avoid everyone.
func (s *Simulation) refreshAvoidance(a *Agent) {
	var sources []field.Source
	for _, id := range slices.Sorted(maps.Keys(s.agents)) {
		other := s.agents[id]
		if other.ID == a.ID || (a.Leader && other.Squad == a.Squad) {
			continue
		}
		sources = append(sources, field.Source{
			Cell:     s.grid.CellAt(other.Position),
			Strength: other.Mass,
			Radius:   other.AvoidanceRadius,
		})
	}
	if err := s.engine.RefreshAvoidance(uint32(a.ID), sources); err != nil {
		slog.Error("refreshing avoidance field", "agent", a.ID, "err", err)
	}
}

func (s *Simulation) refreshFormation(sq *Squad) {
	leader, ok := s.agents[sq.leader]
	if !ok || sq.solver == nil {
		return
	}
	offsets, err := sq.solver.Offsets(leader.Heading)
	if err != nil {
		slog.Warn("formation offsets unavailable", "squad", sq.ID, "heading", leader.Heading, "err", err)
		return
	}
	sq.formation.Publish(field.Formation(s.grid, s.grid.CellAt(leader.Position), offsets, s.params.Formation))
}

// SquadIDs returns the registered squad IDs in ascending order.
func (s *Simulation) SquadIDs() []SquadID {
	return slices.Sorted(maps.Keys(s.squads))
}

// Squad returns a registered squad.
func (s *Simulation) Squad(id SquadID) (*Squad, bool) {
	sq, ok := s.squads[id]
	return sq, ok
}

// Agent returns the current state of one agent.
func (s *Simulation) Agent(id AgentID) (AgentState, bool) {
	a, ok := s.agents[id]
	if !ok {
		return AgentState{}, false
	}
	return a.state(), true
}

// Snapshot returns every agent's state ordered by ID.
func (s *Simulation) Snapshot() []AgentState {
	out := make([]AgentState, 0, len(s.agents))
	for _, id := range slices.Sorted(maps.Keys(s.agents)) {
		out = append(out, s.agents[id].state())
	}
	return out
}

// StaticLayer returns the obstacle layer.
func (s *Simulation) StaticLayer() *field.Layer { return s.engine.Static() }

// StaticField returns the obstacle field.
func (s *Simulation) StaticField() *field.Field { return s.engine.Static().Load() }

// AvoidanceField returns the avoidance field agent id currently steers on.
func (s *Simulation) AvoidanceField(id AgentID) (*field.Field, bool) {
	l, ok := s.engine.Avoidance(uint32(id))
	if !ok {
		return nil, false
	}
	return l.Load(), true
}
