package main

import (
	"context"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/udisondev/squadnav/internal/db"
	"github.com/udisondev/squadnav/internal/sim"
)

// sampler turns tick observations into sample batches for the recorder.
type sampler struct {
	every     uint64
	batchSize int
	buf       []db.Sample
	out       chan []db.Sample
}

func newSampler(every, batchSize int) *sampler {
	return &sampler{
		every:     uint64(max(every, 1)),
		batchSize: max(batchSize, 1),
		out:       make(chan []db.Sample, 16),
	}
}

func (s *sampler) observe(ctx context.Context) sim.Observer {
	return func(tick uint64, states []sim.AgentState) {
		if tick%s.every != 0 {
			return
		}
		for _, st := range states {
			s.buf = append(s.buf, toSample(tick, st))
		}
		if len(s.buf) >= s.batchSize {
			s.flush(ctx)
		}
	}
}

func (s *sampler) flush(ctx context.Context) {
	if len(s.buf) == 0 {
		return
	}
	select {
	case s.out <- s.buf:
	case <-ctx.Done():
	}
	s.buf = nil
}

// close flushes what is left and ends the stream.
func (s *sampler) close(ctx context.Context) {
	s.flush(ctx)
	close(s.out)
}

func toSample(tick uint64, st sim.AgentState) db.Sample {
	return db.Sample{
		Tick:    int64(tick),
		AgentID: int32(st.ID),
		SquadID: int32(st.Squad),
		Leader:  st.Leader,
		X:       st.Position.X,
		Y:       st.Position.Y,
		VX:      st.Velocity.X,
		VY:      st.Velocity.Y,
		Heading: st.Heading.String(),
	}
}

func pathRecord(ticket uint64, start, end r2.Vec, waypoints []r2.Vec, success bool, length float64) db.PathRecord {
	return db.PathRecord{
		Ticket:    int64(ticket),
		StartX:    start.X,
		StartY:    start.Y,
		EndX:      end.X,
		EndY:      end.Y,
		Success:   success,
		Waypoints: int32(len(waypoints)),
		Length:    length,
	}
}
