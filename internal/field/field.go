// Package field builds dense potential fields over a navigation grid.
//
// Positive values attract, negative values repel. A Field is never modified
// after it has been published through a Layer: regeneration always builds a
// fresh array and swaps the reference, so readers on other goroutines see
// either the old or the new field, never a mix.
package field

import (
	"math"
	"sync/atomic"

	"github.com/udisondev/squadnav/internal/geo"
)

// Forbidden marks unwalkable cells. Several Forbidden values can be summed
// without overflowing to -Inf.
const Forbidden = -math.MaxFloat32

// Field is a dense scalar array with the grid's dimensions.
type Field struct {
	width, height int
	values        []float64
}

// New returns a zeroed field for grid.
func New(grid *geo.Grid) *Field {
	return &Field{
		width:  grid.SizeX,
		height: grid.SizeY,
		values: make([]float64, grid.SizeX*grid.SizeY),
	}
}

// Width returns the number of columns.
func (f *Field) Width() int { return f.width }

// Height returns the number of rows.
func (f *Field) Height() int { return f.height }

// At returns the value at (x, y), or 0 outside the field.
func (f *Field) At(x, y int) float64 {
	if x < 0 || y < 0 || x >= f.width || y >= f.height {
		return 0
	}
	return f.values[y*f.width+x]
}

// Values returns a copy of the row-major value array.
func (f *Field) Values() []float64 {
	out := make([]float64, len(f.values))
	copy(out, f.values)
	return out
}

func (f *Field) set(x, y int, v float64) {
	f.values[y*f.width+x] = v
}

// Layer holds the current published version of one field.
type Layer struct {
	name    string
	current atomic.Pointer[Field]
}

// NewLayer creates a layer that starts out with a zero field.
func NewLayer(name string, grid *geo.Grid) *Layer {
	l := &Layer{name: name}
	l.current.Store(New(grid))
	return l
}

// Name returns the label given at construction.
func (l *Layer) Name() string { return l.name }

// Load returns the current field.
func (l *Layer) Load() *Field { return l.current.Load() }

// Publish replaces the current field. f must not be written afterwards.
func (l *Layer) Publish(f *Field) { l.current.Store(f) }

// Stack is an ordered set of layers that are summed together.
// Order is part of the result: floating-point sums are evaluated
// left to right.
type Stack []*Layer

// Snapshot loads every layer once.
func (s Stack) Snapshot() Snapshot {
	out := make(Snapshot, 0, len(s))
	for _, l := range s {
		if l == nil {
			continue
		}
		out = append(out, l.Load())
	}
	return out
}

// Snapshot is a consistent view of a Stack.
type Snapshot []*Field

// Sum adds every field's value at (x, y) in order.
func (s Snapshot) Sum(x, y int) float64 {
	total := 0.0
	for _, f := range s {
		total += f.At(x, y)
	}
	return total
}

// safeDistance maps a zero distance to 1 so strength/distance stays finite.
func safeDistance(d float64) float64 {
	if d == 0 {
		return 1
	}
	return d
}
