package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/udisondev/squadnav/internal/field"
	"github.com/udisondev/squadnav/internal/formation"
	"github.com/udisondev/squadnav/internal/geo"
)

const physicsStep = 50 * time.Millisecond

// newGrid builds a w x h grid of unit cells with its corner at the origin.
func newGrid(t *testing.T, w, h int, blocked ...[2]int) *geo.Grid {
	t.Helper()
	spec := geo.GridSpec{
		Origin:     r2.Vec{X: float64(w) / 2, Y: float64(h) / 2},
		Width:      float64(w),
		Height:     float64(h),
		CellRadius: 0.5,
	}
	g, err := geo.NewGrid(spec, geo.BlockedCells(spec, blocked...))
	require.NoError(t, err)
	return g
}

func at(x, y int) r2.Vec {
	return r2.Vec{X: float64(x) + 0.5, Y: float64(y) + 0.5}
}

// pair is a leader with one follower slot to its left.
var pair = [][]int{
	{0, 0, 0},
	{1, 2, 0},
	{0, 0, 0},
}

func soloSpec(pos r2.Vec) SquadSpec {
	return SquadSpec{
		Name:   "solo",
		Layout: [][]int{{2}},
		Speed:  2,
		Agents: []AgentSpec{{Position: pos, Leader: true}},
	}
}

func TestAddSquadNumbersFromOne(t *testing.T) {
	s := New(newGrid(t, 10, 5), DefaultParams())
	a := s.AddSquad(soloSpec(at(1, 1)))
	b := s.AddSquad(soloSpec(at(5, 1)))

	assert.Equal(t, SquadID(1), a)
	assert.Equal(t, SquadID(2), b)
	assert.Equal(t, []SquadID{1, 2}, s.SquadIDs())

	sq, ok := s.Squad(a)
	require.True(t, ok)
	assert.NoError(t, sq.Err())
	assert.Equal(t, AgentID(1), sq.Leader())
	assert.Equal(t, []AgentID{1}, sq.Agents())
}

func TestInertSquads(t *testing.T) {
	tests := []struct {
		name string
		spec SquadSpec
		want error
	}{
		{
			name: "empty",
			spec: SquadSpec{Layout: [][]int{{2}}},
			want: ErrEmptySquad,
		},
		{
			name: "no leader agent",
			spec: SquadSpec{Layout: [][]int{{2}}, Agents: []AgentSpec{{Position: at(1, 1)}}},
			want: ErrNoSquadLeader,
		},
		{
			name: "two leader agents",
			spec: SquadSpec{Layout: [][]int{{2}}, Agents: []AgentSpec{
				{Position: at(1, 1), Leader: true},
				{Position: at(2, 1), Leader: true},
			}},
			want: ErrTooManyLeaders,
		},
		{
			name: "layout without leader slot",
			spec: SquadSpec{Layout: [][]int{{1, 0}, {0, 0}}, Agents: []AgentSpec{{Position: at(1, 1), Leader: true}}},
			want: formation.ErrNoLeader,
		},
		{
			name: "malformed layout",
			spec: SquadSpec{Layout: [][]int{{2, 7}, {0, 0}}, Agents: []AgentSpec{{Position: at(1, 1), Leader: true}}},
			want: formation.ErrMalformedLayout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(newGrid(t, 10, 5), DefaultParams())
			bad := s.AddSquad(tt.spec)
			good := s.AddSquad(soloSpec(at(1, 3)))

			sq, _ := s.Squad(bad)
			assert.ErrorIs(t, sq.Err(), tt.want)
			assert.ErrorIs(t, s.SetGoal(bad, at(8, 3)), ErrSquadInert)
			_, err := sq.Offsets(formation.Down)
			assert.ErrorIs(t, err, ErrSquadInert)

			require.NoError(t, s.SetGoal(good, at(8, 3)))
			s.Step(physicsStep)
			for _, st := range s.Snapshot() {
				if st.Squad == bad {
					assert.Equal(t, r2.Vec{}, st.Velocity)
				} else {
					assert.Positive(t, st.Velocity.X, "healthy squad keeps moving")
				}
			}
		})
	}
}

func TestLeaderFollowsGoal(t *testing.T) {
	s := New(newGrid(t, 20, 5), DefaultParams())
	id := s.AddSquad(soloSpec(at(1, 2)))

	s.Step(physicsStep)
	st, ok := s.Agent(1)
	require.True(t, ok)
	assert.Equal(t, r2.Vec{}, st.Velocity, "no goal yet")
	assert.Equal(t, at(1, 2), st.Position)

	require.NoError(t, s.SetGoal(id, at(18, 2)))
	s.Step(physicsStep)
	st, _ = s.Agent(1)
	assert.InDelta(t, 2, st.Velocity.X, 1e-9)
	assert.InDelta(t, 0, st.Velocity.Y, 1e-9)
	assert.Equal(t, formation.Right, st.Heading)
	assert.InDelta(t, 1.6, st.Position.X, 1e-9)

	for range 100 {
		s.Step(physicsStep)
	}
	st, _ = s.Agent(1)
	assert.Greater(t, st.Position.X, 10.0)
	assert.Equal(t, uint64(102), s.Ticks())
	assert.Equal(t, 102*physicsStep, s.Elapsed())
}

func TestLeaderSettlesAtGoal(t *testing.T) {
	s := New(newGrid(t, 20, 5), DefaultParams())
	id := s.AddSquad(soloSpec(at(1, 2)))
	require.NoError(t, s.SetGoal(id, at(18, 2)))

	for range 400 {
		s.Step(physicsStep)
	}
	settled, _ := s.Agent(1)

	for range 200 {
		s.Step(physicsStep)
		st, _ := s.Agent(1)
		require.Equal(t, settled.Position, st.Position, "tick %d", s.Ticks())
		require.Equal(t, r2.Vec{}, st.Velocity, "tick %d", s.Ticks())
	}

	c := s.Grid().CellAt(settled.Position)
	assert.Equal(t, c.Center, settled.Position)
	assert.LessOrEqual(t, max(abs(c.X-18), abs(c.Y-2)), 1, "stopped at (%d,%d)", c.X, c.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestSetGoalRejectsSolidTarget(t *testing.T) {
	s := New(newGrid(t, 10, 5, [2]int{7, 2}), DefaultParams())
	id := s.AddSquad(soloSpec(at(1, 2)))
	require.NoError(t, s.SetGoal(id, at(8, 2)))
	sq, _ := s.Squad(id)
	before := sq.GoalField()

	err := s.SetGoal(id, at(7, 2))
	assert.ErrorIs(t, err, field.ErrUnwalkableTarget)
	assert.Same(t, before, sq.GoalField(), "previous goal kept")
	target, ok := sq.Target()
	require.True(t, ok)
	assert.Equal(t, 8, target.X)

	assert.ErrorIs(t, s.SetGoal(99, at(1, 1)), ErrUnknownSquad)
}

func TestFollowerMovesToSlot(t *testing.T) {
	s := New(newGrid(t, 10, 6), DefaultParams())
	id := s.AddSquad(SquadSpec{
		Name:   "pair",
		Layout: pair,
		Speed:  1,
		Agents: []AgentSpec{
			{Position: at(5, 2), Leader: true},
			{Position: at(4, 4)},
		},
	})
	sq, _ := s.Squad(id)
	require.NoError(t, sq.Err())

	s.Step(physicsStep)

	slot := sq.FormationField()
	assert.Equal(t, 20.0, slot.At(4, 2), "slot left of the leader facing down")

	st, _ := s.Agent(2)
	assert.InDelta(t, 0, st.Velocity.X, 1e-9)
	assert.InDelta(t, -2, st.Velocity.Y, 1e-9, "followers run at twice the squad speed")
	assert.Equal(t, formation.Down, st.Heading)
}

func TestAvoidanceIgnoresOwnSquadForLeader(t *testing.T) {
	s := New(newGrid(t, 10, 6), DefaultParams())
	s.AddSquad(SquadSpec{
		Layout: pair,
		Speed:  1,
		Agents: []AgentSpec{
			{Position: at(5, 2), Leader: true},
			{Position: at(4, 4)},
		},
	})
	s.AddSquad(soloSpec(at(8, 2)))
	s.Step(physicsStep)

	leader, ok := s.AvoidanceField(1)
	require.True(t, ok)
	assert.Zero(t, leader.At(4, 4), "squadmate ignored")
	assert.InDelta(t, -1.5, leader.At(8, 2), 1e-9, "other squad avoided")

	follower, ok := s.AvoidanceField(2)
	require.True(t, ok)
	assert.InDelta(t, -1.5, follower.At(5, 2), 1e-9)
}

func TestRemoveAgentStopsRefresh(t *testing.T) {
	s := New(newGrid(t, 10, 6), DefaultParams())
	id := s.AddSquad(SquadSpec{
		Layout: pair,
		Speed:  1,
		Agents: []AgentSpec{
			{Position: at(5, 2), Leader: true},
			{Position: at(4, 4)},
		},
	})
	assert.Equal(t, 3, s.sched.Len(), "two agents and one formation task")

	require.NoError(t, s.RemoveAgent(2))
	assert.Equal(t, 2, s.sched.Len())
	_, ok := s.AvoidanceField(2)
	assert.False(t, ok)
	assert.Equal(t, 1, s.engine.Count())

	sq, _ := s.Squad(id)
	assert.NoError(t, sq.Err())

	require.NoError(t, s.RemoveAgent(1))
	assert.ErrorIs(t, sq.Err(), ErrEmptySquad)
	assert.Zero(t, s.sched.Len())
	assert.ErrorIs(t, s.RemoveAgent(1), ErrUnknownAgent)
}

func TestRemovingLeaderMakesSquadInert(t *testing.T) {
	s := New(newGrid(t, 10, 6), DefaultParams())
	id := s.AddSquad(SquadSpec{
		Layout: pair,
		Speed:  1,
		Agents: []AgentSpec{
			{Position: at(5, 2), Leader: true},
			{Position: at(4, 4)},
		},
	})
	s.Step(physicsStep)
	require.NoError(t, s.RemoveAgent(1))

	sq, _ := s.Squad(id)
	assert.ErrorIs(t, sq.Err(), ErrNoSquadLeader)
	s.Step(physicsStep)
	st, _ := s.Agent(2)
	assert.Equal(t, r2.Vec{}, st.Velocity)
}

func TestAddAgent(t *testing.T) {
	s := New(newGrid(t, 10, 6), DefaultParams())
	id := s.AddSquad(soloSpec(at(1, 1)))

	aid, err := s.AddAgent(id, AgentSpec{Position: at(2, 2), Mass: 3})
	require.NoError(t, err)
	assert.Equal(t, AgentID(2), aid)

	_, err = s.AddAgent(id, AgentSpec{Leader: true})
	assert.ErrorIs(t, err, ErrTooManyLeaders)
	_, err = s.AddAgent(42, AgentSpec{})
	assert.ErrorIs(t, err, ErrUnknownSquad)

	s.Step(physicsStep)
	leader, _ := s.AvoidanceField(1)
	assert.Zero(t, leader.At(2, 2))

	other := s.AddSquad(soloSpec(at(8, 4)))
	s.Step(physicsStep)
	f, _ := s.AvoidanceField(AgentID(3))
	assert.InDelta(t, -3, f.At(2, 2), 1e-9, "configured mass")
	assert.Equal(t, SquadID(2), other)
}

func TestRemoveSquad(t *testing.T) {
	s := New(newGrid(t, 10, 6), DefaultParams())
	id := s.AddSquad(SquadSpec{
		Layout: pair,
		Speed:  1,
		Agents: []AgentSpec{
			{Position: at(5, 2), Leader: true},
			{Position: at(4, 4)},
		},
	})
	require.NoError(t, s.RemoveSquad(id))

	assert.Zero(t, s.sched.Len())
	assert.Zero(t, s.engine.Count())
	assert.Empty(t, s.Snapshot())
	assert.ErrorIs(t, s.RemoveSquad(id), ErrUnknownSquad)
}

func TestRequestPathServedInsideStep(t *testing.T) {
	s := New(newGrid(t, 10, 10), DefaultParams())

	var order []string
	s.RequestPath(at(0, 0), at(9, 9), func(wp []r2.Vec, ok bool) {
		order = append(order, "long")
		assert.True(t, ok)
		assert.Len(t, wp, 1)
	})
	s.RequestPath(at(0, 0), at(1, 0), func(_ []r2.Vec, ok bool) {
		order = append(order, "short")
		assert.True(t, ok)
	})
	assert.Equal(t, 2, s.PendingPaths())

	s.Step(physicsStep)
	assert.Equal(t, []string{"long"}, order)
	s.Step(physicsStep)
	assert.Equal(t, []string{"long", "short"}, order)
	assert.Zero(t, s.PendingPaths())
}

func TestStaticFieldMarksObstacles(t *testing.T) {
	s := New(newGrid(t, 6, 6, [2]int{3, 3}), DefaultParams())
	assert.Equal(t, field.Forbidden, s.StaticField().At(3, 3))
	assert.InDelta(t, -10, s.StaticField().At(3, 2), 1e-9)
	assert.Same(t, s.StaticLayer().Load(), s.StaticField())
}

func TestTickManagerRun(t *testing.T) {
	s := New(newGrid(t, 10, 5), DefaultParams())
	s.AddSquad(soloSpec(at(1, 1)))

	m := NewTickManager(s, physicsStep, 5)
	var seen []uint64
	m.Observe(func(tick uint64, states []AgentState) {
		seen = append(seen, tick)
		assert.Len(t, states, 1)
	})

	require.NoError(t, m.Run(context.Background()))
	assert.Equal(t, uint64(5), m.Ticks())
	assert.Equal(t, uint64(5), s.Ticks())
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, seen)

	require.NoError(t, m.Run(context.Background()), "limit already reached")
	assert.Equal(t, uint64(5), m.Ticks())
}

func TestTickManagerStart(t *testing.T) {
	s := New(newGrid(t, 10, 5), DefaultParams())
	m := NewTickManager(s, time.Millisecond, 3)
	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, uint64(3), m.Ticks())

	m = NewTickManager(s, time.Millisecond, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Start(ctx), context.Canceled)

	m = NewTickManager(s, time.Hour, 0)
	m.Stop()
	m.Stop()
	assert.NoError(t, m.Start(context.Background()))
}
