package field

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/udisondev/squadnav/internal/geo"
)

var (
	ErrAgentRegistered = errors.New("agent already registered")
	ErrUnknownAgent    = errors.New("agent not registered")
)

// StaticParams configures the obstacle field.
type StaticParams struct {
	Strength float64
	Radius   float64
}

// Engine owns the fields shared by every agent: the static obstacle field
// and one avoidance field per registered agent.
type Engine struct {
	grid      *geo.Grid
	static    *Layer
	avoidance map[uint32]*Layer
}

// NewEngine computes the static field for grid.
func NewEngine(grid *geo.Grid, p StaticParams) *Engine {
	e := &Engine{
		grid:      grid,
		static:    NewLayer("static", grid),
		avoidance: make(map[uint32]*Layer),
	}
	e.static.Publish(Static(grid, p.Strength, p.Radius))

	slog.Info("static field generated",
		"boundaryObstacles", len(BoundaryObstacles(grid)),
		"strength", p.Strength,
		"radius", p.Radius)
	return e
}

// Grid returns the grid the engine was built for.
func (e *Engine) Grid() *geo.Grid { return e.grid }

// Static returns the obstacle layer.
func (e *Engine) Static() *Layer { return e.static }

// RegisterAgent creates an empty avoidance layer for id.
func (e *Engine) RegisterAgent(id uint32) (*Layer, error) {
	if _, ok := e.avoidance[id]; ok {
		return nil, fmt.Errorf("%w: %d", ErrAgentRegistered, id)
	}
	l := NewLayer(fmt.Sprintf("avoidance-%d", id), e.grid)
	e.avoidance[id] = l
	slog.Debug("agent field registered", "agent", id)
	return l, nil
}

// UnregisterAgent drops the avoidance layer of id.
func (e *Engine) UnregisterAgent(id uint32) {
	if _, ok := e.avoidance[id]; !ok {
		return
	}
	delete(e.avoidance, id)
	slog.Debug("agent field unregistered", "agent", id)
}

// Avoidance returns the avoidance layer of id.
func (e *Engine) Avoidance(id uint32) (*Layer, bool) {
	l, ok := e.avoidance[id]
	return l, ok
}

// RefreshAvoidance rebuilds the avoidance field of id from sources and
// publishes it.
func (e *Engine) RefreshAvoidance(id uint32, sources []Source) error {
	l, ok := e.avoidance[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownAgent, id)
	}
	l.Publish(Avoidance(e.grid, sources))
	return nil
}

// Count returns the number of registered agents.
func (e *Engine) Count() int {
	return len(e.avoidance)
}
