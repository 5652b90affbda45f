package geo

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

// squareSpec covers n×n cells with the bottom-left corner at the world origin.
func squareSpec(n int, cellRadius float64) GridSpec {
	side := float64(n) * cellRadius * 2
	return GridSpec{
		Origin:     r2.Vec{X: side / 2, Y: side / 2},
		Width:      side,
		Height:     side,
		CellRadius: cellRadius,
	}
}

func newTestGrid(t *testing.T, n int, cellRadius float64, blocked ...[2]int) *Grid {
	t.Helper()
	spec := squareSpec(n, cellRadius)
	g, err := NewGrid(spec, BlockedCells(spec, blocked...))
	require.NoError(t, err)
	return g
}

func TestNewGridDimensions(t *testing.T) {
	g, err := NewGrid(GridSpec{Width: 30, Height: 20, CellRadius: 0.5}, nil)
	require.NoError(t, err)
	assert.Equal(t, 30, g.SizeX)
	assert.Equal(t, 20, g.SizeY)
	assert.Equal(t, 600, g.Len())
	assert.Equal(t, 1.0, g.CellDiameter())

	// Origin is the grid center.
	first := g.At(0, 0)
	assert.InDelta(t, -14.5, first.Center.X, 1e-9)
	assert.InDelta(t, -9.5, first.Center.Y, 1e-9)
}

func TestNewGridRejectsBadSpec(t *testing.T) {
	_, err := NewGrid(GridSpec{Width: 0, Height: 10, CellRadius: 1}, nil)
	assert.ErrorIs(t, err, ErrInvalidExtent)

	_, err = NewGrid(GridSpec{Width: 10, Height: 10, CellRadius: 0}, nil)
	assert.ErrorIs(t, err, ErrInvalidRadius)

	_, err = NewGrid(GridSpec{Width: 1, Height: 1, CellRadius: 5}, nil)
	assert.ErrorIs(t, err, ErrEmptyGrid)
}

func TestNewGridQueriesOracleOncePerCell(t *testing.T) {
	calls := 0
	oracle := WalkabilityFunc(func(p r2.Vec, radius float64) bool {
		calls++
		assert.Equal(t, 0.5, radius)
		return p.X < 1 // first column solid
	})

	g, err := NewGrid(squareSpec(4, 0.5), oracle)
	require.NoError(t, err)
	assert.Equal(t, 16, calls)
	assert.False(t, g.At(0, 2).Walkable)
	assert.True(t, g.At(1, 2).Walkable)
}

func TestCellAt(t *testing.T) {
	g := newTestGrid(t, 5, 0.5)

	c := g.CellAt(r2.Vec{X: 2.5, Y: 1.5})
	assert.Equal(t, 2, c.X)
	assert.Equal(t, 1, c.Y)

	// Out of range clamps to the border.
	c = g.CellAt(r2.Vec{X: -100, Y: 100})
	assert.Equal(t, 0, c.X)
	assert.Equal(t, 4, c.Y)
}

func TestCellAtIdempotent(t *testing.T) {
	g, err := NewGrid(GridSpec{Origin: r2.Vec{X: 3, Y: -7}, Width: 37, Height: 23, CellRadius: 0.75}, nil)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(1, 2))
	for range 5000 {
		p := r2.Vec{X: rng.Float64()*80 - 37, Y: rng.Float64()*60 - 37}
		c := g.CellAt(p)
		again := g.CellAt(c.Center)
		require.Equal(t, c.X, again.X, "point %v", p)
		require.Equal(t, c.Y, again.Y, "point %v", p)
	}
}

func TestNeighborsOrderAndClipping(t *testing.T) {
	g := newTestGrid(t, 5, 0.5)

	nbs := g.Neighbors(g.At(2, 2))
	require.Len(t, nbs, 8)
	want := [][2]int{{1, 1}, {2, 1}, {3, 1}, {1, 2}, {3, 2}, {1, 3}, {2, 3}, {3, 3}}
	for i, nb := range nbs {
		assert.Equal(t, want[i], [2]int{nb.X, nb.Y})
	}

	corner := g.Neighbors(g.At(0, 0))
	require.Len(t, corner, 3)
	assert.Equal(t, [2]int{1, 0}, [2]int{corner[0].X, corner[0].Y})
	assert.Equal(t, [2]int{0, 1}, [2]int{corner[1].X, corner[1].Y})
	assert.Equal(t, [2]int{1, 1}, [2]int{corner[2].X, corner[2].Y})
}

func TestInBounds(t *testing.T) {
	g := newTestGrid(t, 3, 1)
	assert.True(t, g.InBounds(0, 0))
	assert.True(t, g.InBounds(2, 2))
	assert.False(t, g.InBounds(-1, 0))
	assert.False(t, g.InBounds(3, 1))
	assert.False(t, g.InBounds(1, 3))
}

func TestBlockedCells(t *testing.T) {
	g := newTestGrid(t, 4, 0.5, [2]int{1, 1}, [2]int{3, 0})
	for y := range 4 {
		for x := range 4 {
			solid := (x == 1 && y == 1) || (x == 3 && y == 0)
			assert.Equal(t, !solid, g.At(x, y).Walkable, "cell (%d,%d)", x, y)
		}
	}
}

func TestObstaclesOccupied(t *testing.T) {
	o := Obstacles{
		Rects:   []Rect{{Min: r2.Vec{X: 0, Y: 0}, Max: r2.Vec{X: 2, Y: 2}}},
		Circles: []Circle{{Center: r2.Vec{X: 10, Y: 10}, Radius: 1}},
	}
	assert.True(t, o.Occupied(r2.Vec{X: 1, Y: 1}, 0.1))
	assert.True(t, o.Occupied(r2.Vec{X: 2.4, Y: 1}, 0.5))
	assert.False(t, o.Occupied(r2.Vec{X: 2.5, Y: 1}, 0.5))
	assert.True(t, o.Occupied(r2.Vec{X: 11.5, Y: 10}, 0.6))
	assert.False(t, o.Occupied(r2.Vec{X: 12, Y: 10}, 0.5))
}
