package field

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

func TestLayerPublishReplaces(t *testing.T) {
	g := newGrid(t, 4, 0.5)
	l := NewLayer("goal", g)
	before := l.Load()
	assert.Zero(t, before.At(1, 1))

	next, _, err := Goal(g, g.At(1, 1).Center, 10)
	require.NoError(t, err)
	l.Publish(next)

	assert.Zero(t, before.At(1, 1), "published arrays are never patched")
	assert.Equal(t, 10.0, l.Load().At(1, 1))
	assert.Equal(t, "goal", l.Name())
}

func TestStackSumOrder(t *testing.T) {
	g := newGrid(t, 3, 0.5, [2]int{2, 2})
	goal, _, err := Goal(g, g.At(0, 0).Center, 10)
	require.NoError(t, err)

	a := NewLayer("goal", g)
	a.Publish(goal)
	b := NewLayer("static", g)
	b.Publish(Static(g, 1, 1))

	snap := Stack{a, nil, b}.Snapshot()
	require.Len(t, snap, 2)
	assert.InDelta(t, goal.At(1, 1)+snap[1].At(1, 1), snap.Sum(1, 1), 1e-12)
	assert.Zero(t, snap.Sum(-1, 5), "outside the grid")
}

func TestEngineLifecycle(t *testing.T) {
	g := newGrid(t, 5, 0.5, [2]int{0, 0})
	e := NewEngine(g, StaticParams{Strength: 2, Radius: 1})

	assert.Equal(t, Forbidden, e.Static().Load().At(0, 0))
	assert.InDelta(t, -2, e.Static().Load().At(1, 0), 1e-9)

	l, err := e.RegisterAgent(7)
	require.NoError(t, err)
	_, err = e.RegisterAgent(7)
	assert.ErrorIs(t, err, ErrAgentRegistered)
	assert.Equal(t, 1, e.Count())

	require.NoError(t, e.RefreshAvoidance(7, []Source{{Cell: g.At(3, 3), Strength: 1.5, Radius: 2}}))
	assert.InDelta(t, -1.5, l.Load().At(3, 3), 1e-9)

	got, ok := e.Avoidance(7)
	require.True(t, ok)
	assert.Same(t, l, got)

	e.UnregisterAgent(7)
	_, ok = e.Avoidance(7)
	assert.False(t, ok)
	assert.ErrorIs(t, e.RefreshAvoidance(7, nil), ErrUnknownAgent)
	assert.Zero(t, e.Count())
}

func TestDump(t *testing.T) {
	g := newGrid(t, 2, 0.5, [2]int{1, 1})
	goal := NewLayer("goal", g)
	f, _, err := Goal(g, r2.Vec{X: 0.5, Y: 0.5}, 4)
	require.NoError(t, err)
	goal.Publish(f)

	var buf bytes.Buffer
	require.NoError(t, Dump(&buf, g, Stack{goal}, 1))
	want := "     4.0     -inf\n" +
		"     4.0      4.0\n"
	assert.Equal(t, want, buf.String())
}
