package geo

import (
	"container/heap"

	"gonum.org/v1/gonum/spatial/r2"
)

// A* step costs.
const (
	CostStraight = 10
	CostDiagonal = 14
)

// PathResult is the outcome of one path query.
type PathResult struct {
	Waypoints []r2.Vec
	Success   bool
	Expanded  int // nodes taken off the open set
}

// PlannerOptions tune the search.
type PlannerOptions struct {
	AllowDiagonal bool
}

// DefaultPlannerOptions allows 8-way movement.
func DefaultPlannerOptions() PlannerOptions {
	return PlannerOptions{AllowDiagonal: true}
}

// Planner runs A* over a Grid. A Planner keeps no state between queries.
type Planner struct {
	grid *Grid
	opts PlannerOptions
}

// NewPlanner creates a planner for grid.
func NewPlanner(grid *Grid, opts PlannerOptions) *Planner {
	return &Planner{grid: grid, opts: opts}
}

// FindPath searches from the cell under start to the cell under end.
// Unreachable or unwalkable endpoints are reported with Success=false.
func (p *Planner) FindPath(start, end r2.Vec) PathResult {
	startCell := p.grid.CellAt(start)
	targetCell := p.grid.CellAt(end)

	if !startCell.Walkable || !targetCell.Walkable {
		return PathResult{}
	}

	// Already in the target cell.
	if startCell.X == targetCell.X && startCell.Y == targetCell.Y {
		return PathResult{Waypoints: []r2.Vec{targetCell.Center}, Success: true}
	}

	goal, expanded := p.astar(startCell, targetCell)
	if goal == nil {
		return PathResult{Expanded: expanded}
	}

	cells := make([]Cell, 0, 32)
	for n := goal; n != nil; n = n.parent {
		cells = append(cells, n.cell)
	}

	// Reverse (A* builds path backward)
	for i, j := 0, len(cells)-1; i < j; i, j = i+1, j-1 {
		cells[i], cells[j] = cells[j], cells[i]
	}

	return PathResult{
		Waypoints: simplifyPath(cells),
		Success:   true,
		Expanded:  expanded,
	}
}

// simplifyPath keeps only the cells where the direction of travel changes
// after them, plus the final cell. cells[0] is the start and never emitted.
func simplifyPath(cells []Cell) []r2.Vec {
	waypoints := make([]r2.Vec, 0, 8)
	for i := 1; i < len(cells); i++ {
		if i == len(cells)-1 {
			waypoints = append(waypoints, cells[i].Center)
			break
		}
		inX, inY := cells[i].X-cells[i-1].X, cells[i].Y-cells[i-1].Y
		outX, outY := cells[i+1].X-cells[i].X, cells[i+1].Y-cells[i].Y
		if inX != outX || inY != outY {
			waypoints = append(waypoints, cells[i].Center)
		}
	}
	return waypoints
}

// pathNode is per-query search state for one cell.
type pathNode struct {
	cell   Cell
	parent *pathNode
	gCost  int
	hCost  int
	seq    int // insertion order, final tie-break
	index  int // heap index
}

func (n *pathNode) fCost() int { return n.gCost + n.hCost }

// astar returns the goal node (nil if unreachable) and the number of expansions.
func (p *Planner) astar(startCell, targetCell Cell) (*pathNode, int) {
	seq := 0
	start := &pathNode{cell: startCell, hCost: p.heuristic(startCell, targetCell)}

	openList := &nodeHeap{}
	heap.Init(openList)
	heap.Push(openList, start)

	open := map[int]*pathNode{p.grid.Index(startCell.X, startCell.Y): start}
	closed := make(map[int]struct{}, 256)
	expanded := 0

	for openList.Len() > 0 {
		current := heap.Pop(openList).(*pathNode)
		key := p.grid.Index(current.cell.X, current.cell.Y)
		delete(open, key)
		closed[key] = struct{}{}
		expanded++

		if key == p.grid.Index(targetCell.X, targetCell.Y) {
			return current, expanded
		}

		for _, nb := range p.grid.Neighbors(current.cell) {
			if !nb.Walkable {
				continue
			}
			nk := p.grid.Index(nb.X, nb.Y)
			if _, done := closed[nk]; done {
				continue
			}

			dx, dy := nb.X-current.cell.X, nb.Y-current.cell.Y
			diagonal := dx != 0 && dy != 0
			if diagonal {
				if !p.opts.AllowDiagonal {
					continue
				}
				// No corner cutting past solid cells.
				if !p.grid.At(current.cell.X+dx, current.cell.Y).Walkable ||
					!p.grid.At(current.cell.X, current.cell.Y+dy).Walkable {
					continue
				}
			}

			step := CostStraight
			if diagonal {
				step = CostDiagonal
			}
			gCost := current.gCost + step

			if node, ok := open[nk]; ok {
				if gCost < node.gCost {
					node.gCost = gCost
					node.parent = current
					heap.Fix(openList, node.index)
				}
				continue
			}

			seq++
			node := &pathNode{
				cell:   nb,
				parent: current,
				gCost:  gCost,
				hCost:  p.heuristic(nb, targetCell),
				seq:    seq,
			}
			open[nk] = node
			heap.Push(openList, node)
		}
	}

	return nil, expanded
}

// heuristic is the octile distance in 10/14 units, or Manhattan distance
// when diagonal moves are disabled.
func (p *Planner) heuristic(a, b Cell) int {
	dx := abs(a.X - b.X)
	dy := abs(a.Y - b.Y)
	if !p.opts.AllowDiagonal {
		return CostStraight * (dx + dy)
	}
	return CostStraight*(dx+dy) + (CostDiagonal-2*CostStraight)*min(dx, dy)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// nodeHeap implements container/heap for the A* open list
// (min-heap by fCost, then hCost, then insertion order).
type nodeHeap []*pathNode

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if fi, fj := h[i].fCost(), h[j].fCost(); fi != fj {
		return fi < fj
	}
	if h[i].hCost != h[j].hCost {
		return h[i].hCost < h[j].hCost
	}
	return h[i].seq < h[j].seq
}
func (h nodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *nodeHeap) Push(x any)   { n := x.(*pathNode); n.index = len(*h); *h = append(*h, n) }
func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	node := old[n-1]
	old[n-1] = nil // GC
	node.index = -1
	*h = old[:n-1]
	return node
}

// PathLength returns the polyline length from start through waypoints.
func PathLength(start r2.Vec, waypoints []r2.Vec) float64 {
	total := 0.0
	prev := start
	for _, wp := range waypoints {
		total += r2.Norm(r2.Sub(wp, prev))
		prev = wp
	}
	return total
}
