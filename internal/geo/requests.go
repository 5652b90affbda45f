package geo

import (
	"log/slog"

	"gonum.org/v1/gonum/spatial/r2"
)

// PathCallback receives the result of a queued path request.
type PathCallback func(waypoints []r2.Vec, success bool)

type pathRequest struct {
	id       uint64
	start    r2.Vec
	end      r2.Vec
	callback PathCallback
}

// RequestQueue serializes path queries: requests are serviced one at a time
// in submission order. Not safe for concurrent use; it belongs to the
// simulation step loop.
type RequestQueue struct {
	planner *Planner
	pending []pathRequest
	nextID  uint64
	busy    bool
}

// NewRequestQueue creates a queue backed by planner.
func NewRequestQueue(planner *Planner) *RequestQueue {
	return &RequestQueue{planner: planner}
}

// Submit enqueues a request and returns its ticket number.
func (q *RequestQueue) Submit(start, end r2.Vec, cb PathCallback) uint64 {
	q.nextID++
	q.pending = append(q.pending, pathRequest{id: q.nextID, start: start, end: end, callback: cb})
	return q.nextID
}

// Pending returns the number of requests waiting to be serviced.
func (q *RequestQueue) Pending() int {
	return len(q.pending)
}

// Pump services up to max queued requests (all of them if max <= 0) and
// returns how many ran. Requests submitted from a callback are queued
// behind the existing ones; a nested Pump from a callback is a no-op.
func (q *RequestQueue) Pump(max int) int {
	if q.busy {
		return 0
	}
	q.busy = true
	defer func() { q.busy = false }()

	served := 0
	for len(q.pending) > 0 && (max <= 0 || served < max) {
		req := q.pending[0]
		q.pending[0] = pathRequest{}
		q.pending = q.pending[1:]

		result := q.planner.FindPath(req.start, req.end)
		slog.Debug("path request served",
			"request", req.id,
			"success", result.Success,
			"waypoints", len(result.Waypoints),
			"expanded", result.Expanded)

		if req.callback != nil {
			req.callback(result.Waypoints, result.Success)
		}
		served++
	}
	return served
}
