package formation

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Canonical returns the follower offsets of l relative to the leader for the
// Down heading. Matrix columns are walked outermost.
func Canonical(l Layout) []r2.Vec {
	offsets := make([]r2.Vec, 0, l.followers)
	n := l.Size()
	for x := range n {
		for y := range n {
			if l.rows[y][x] != SlotFollower {
				continue
			}
			offsets = append(offsets, r2.Vec{
				X: float64(x - l.leaderX),
				Y: float64(y - l.leaderY),
			})
		}
	}
	return offsets
}

// Rotate turns offsets clockwise by n turns of mode. Quarter turns use the
// exact transform (x, y) -> (y, -x). The remaining 45° step of an odd
// EightWay count moves each offset one eighth of the way around its square
// ring, so distinct lattice offsets stay distinct.
func Rotate(offsets []r2.Vec, n int, mode HeadingMode) []r2.Vec {
	quarters, half := n, 0
	if mode == EightWay {
		quarters, half = n/2, n%2
	}
	quarters = ((quarters % 4) + 4) % 4
	if half < 0 {
		half = -half
		quarters = (quarters + 3) % 4
	}

	out := make([]r2.Vec, len(offsets))
	for i, o := range offsets {
		for range quarters {
			o = r2.Vec{X: o.Y, Y: -o.X}
		}
		if half == 1 {
			o = eighthTurn(o)
		}
		out[i] = o
	}
	return out
}

// eighthTurn walks o clockwise along its Chebyshev ring by the ring's
// radius, the lattice counterpart of a 45° turn.
func eighthTurn(o r2.Vec) r2.Vec {
	x, y := int(math.Round(o.X)), int(math.Round(o.Y))
	r := max(abs(x), abs(y))
	for range r {
		switch {
		case y == r && x < r:
			x++
		case x == r && y > -r:
			y--
		case y == -r && x > -r:
			x--
		default:
			y++
		}
	}
	return r2.Vec{X: float64(x), Y: float64(y)}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Solver serves rotated offsets for a layout, computing each heading once.
type Solver struct {
	layout    Layout
	mode      HeadingMode
	canonical []r2.Vec
	cache     map[Heading][]r2.Vec
	computed  int
}

// NewSolver creates a solver for layout.
func NewSolver(layout Layout, mode HeadingMode) *Solver {
	s := &Solver{mode: mode}
	s.SetLayout(layout)
	return s
}

// SetLayout replaces the layout and drops every cached heading.
func (s *Solver) SetLayout(layout Layout) {
	s.layout = layout
	s.canonical = Canonical(layout)
	s.cache = make(map[Heading][]r2.Vec)
}

// SetMode switches the heading mode and drops every cached heading.
func (s *Solver) SetMode(mode HeadingMode) {
	s.mode = mode
	s.cache = make(map[Heading][]r2.Vec)
}

// Mode returns the current heading mode.
func (s *Solver) Mode() HeadingMode { return s.mode }

// Layout returns the current layout.
func (s *Solver) Layout() Layout { return s.layout }

// Offsets returns the follower offsets for heading h. The returned slice is
// shared with the cache and must not be modified.
func (s *Solver) Offsets(h Heading) ([]r2.Vec, error) {
	if cached, ok := s.cache[h]; ok {
		return cached, nil
	}
	n, err := steps(h, s.mode)
	if err != nil {
		return nil, err
	}

	offsets := Rotate(s.canonical, n, s.mode)
	s.cache[h] = offsets
	s.computed++
	slog.Debug("formation offsets computed", "heading", h, "mode", s.mode, "slots", len(offsets))
	return offsets, nil
}

// Computations returns how many headings have been computed since creation.
func (s *Solver) Computations() int { return s.computed }
