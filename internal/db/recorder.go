package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrRunNotFound is returned for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// Sample is one agent's state at one tick.
type Sample struct {
	Tick    int64
	AgentID int32
	SquadID int32
	Leader  bool
	X, Y    float64
	VX, VY  float64
	Heading string
}

// PathRecord is the outcome of one path request.
type PathRecord struct {
	Ticket         int64
	StartX, StartY float64
	EndX, EndY     float64
	Success        bool
	Waypoints      int32
	Length         float64
}

// Run is a row of the runs table.
type Run struct {
	ID         uuid.UUID
	Name       string
	Summary    string
	StartedAt  time.Time
	FinishedAt *time.Time
	Ticks      int64
}

// Recorder stores simulation runs in PostgreSQL.
type Recorder struct {
	pool *pgxpool.Pool
}

// NewRecorder creates a recorder on pool.
func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

// StartRun inserts a new run and returns its ID.
func (r *Recorder) StartRun(ctx context.Context, name, summary string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO runs (id, name, summary) VALUES ($1, $2, $3)`,
		id, name, summary,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("starting run %q: %w", name, err)
	}
	slog.Info("run started", "run", id, "name", name)
	return id, nil
}

// RecordSamples bulk-inserts samples for runID.
func (r *Recorder) RecordSamples(ctx context.Context, runID uuid.UUID, samples []Sample) error {
	if len(samples) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(samples))
	for _, s := range samples {
		rows = append(rows, []any{runID, s.Tick, s.AgentID, s.SquadID, s.Leader, s.X, s.Y, s.VX, s.VY, s.Heading})
	}

	_, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"agent_samples"},
		[]string{"run_id", "tick", "agent_id", "squad_id", "leader", "x", "y", "vx", "vy", "heading"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("inserting samples for run %s: %w", runID, err)
	}

	slog.Debug("samples recorded", "run", runID, "count", len(samples))
	return nil
}

// RecordPath stores one path result.
func (r *Recorder) RecordPath(ctx context.Context, runID uuid.UUID, p PathRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO path_results (run_id, ticket, start_x, start_y, end_x, end_y, success, waypoints, length)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		runID, p.Ticket, p.StartX, p.StartY, p.EndX, p.EndY, p.Success, p.Waypoints, p.Length,
	)
	if err != nil {
		return fmt.Errorf("inserting path %d for run %s: %w", p.Ticket, runID, err)
	}
	return nil
}

// FinishRun marks a run as finished after ticks steps.
func (r *Recorder) FinishRun(ctx context.Context, runID uuid.UUID, ticks int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE runs SET finished_at = now(), ticks = $2 WHERE id = $1`,
		runID, ticks,
	)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", runID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finishing run %s: %w", runID, ErrRunNotFound)
	}
	slog.Info("run finished", "run", runID, "ticks", ticks)
	return nil
}

// GetRun loads a run by ID.
func (r *Recorder) GetRun(ctx context.Context, runID uuid.UUID) (Run, error) {
	var run Run
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, summary, started_at, finished_at, ticks FROM runs WHERE id = $1`,
		runID,
	).Scan(&run.ID, &run.Name, &run.Summary, &run.StartedAt, &run.FinishedAt, &run.Ticks)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Run{}, fmt.Errorf("loading run %s: %w", runID, ErrRunNotFound)
		}
		return Run{}, fmt.Errorf("loading run %s: %w", runID, err)
	}
	return run, nil
}

// CountSamples returns the number of samples stored for runID.
func (r *Recorder) CountSamples(ctx context.Context, runID uuid.UUID) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM agent_samples WHERE run_id = $1`, runID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting samples for run %s: %w", runID, err)
	}
	return n, nil
}

// Consume writes sample batches from in until it is closed or ctx ends.
func (r *Recorder) Consume(ctx context.Context, runID uuid.UUID, in <-chan []Sample) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-in:
			if !ok {
				return nil
			}
			if err := r.RecordSamples(ctx, runID, batch); err != nil {
				return err
			}
		}
	}
}
