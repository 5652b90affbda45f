package sim

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Observer receives the agent states after every tick. It runs on the tick
// goroutine and must not block for long.
type Observer func(tick uint64, states []AgentState)

// TickManager drives a Simulation with a fixed physics step.
type TickManager struct {
	sim       *Simulation
	step      time.Duration
	limit     uint64
	observers []Observer
	stopCh    chan struct{}
	stopOnce  sync.Once
	ticks     atomic.Uint64
}

// NewTickManager creates a manager that advances sim by step per tick.
// A limit of zero runs until stopped.
func NewTickManager(sim *Simulation, step time.Duration, limit uint64) *TickManager {
	return &TickManager{
		sim:    sim,
		step:   step,
		limit:  limit,
		stopCh: make(chan struct{}),
	}
}

// Observe adds an observer. Call before Start or Run.
func (m *TickManager) Observe(o Observer) {
	m.observers = append(m.observers, o)
}

// Start ticks on a wall-clock ticker until ctx is cancelled, Stop is
// called or the tick limit is reached.
func (m *TickManager) Start(ctx context.Context) error {
	ticker := time.NewTicker(m.step)
	defer ticker.Stop()

	slog.Info("tick manager started", "step", m.step, "limit", m.limit)

	for {
		select {
		case <-ctx.Done():
			slog.Info("tick manager stopping", "ticks", m.Ticks())
			return ctx.Err()

		case <-m.stopCh:
			slog.Info("tick manager stopped", "ticks", m.Ticks())
			return nil

		case <-ticker.C:
			if !m.tick() {
				slog.Info("tick limit reached", "ticks", m.Ticks())
				return nil
			}
		}
	}
}

// Run ticks as fast as possible until the limit is reached or ctx is
// cancelled. Without a limit it only stops on cancellation.
func (m *TickManager) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-m.stopCh:
			return nil
		default:
		}
		if !m.tick() {
			return nil
		}
	}
}

// Stop ends Start or Run. It is safe to call more than once.
func (m *TickManager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// Ticks returns the number of completed ticks.
func (m *TickManager) Ticks() uint64 {
	return m.ticks.Load()
}

// tick runs one step and reports whether more ticks are allowed.
func (m *TickManager) tick() bool {
	if m.limit > 0 && m.ticks.Load() >= m.limit {
		return false
	}
	m.sim.Step(m.step)
	n := m.ticks.Add(1)

	if len(m.observers) > 0 {
		states := m.sim.Snapshot()
		for _, o := range m.observers {
			o(n, states)
		}
	}
	return m.limit == 0 || n < m.limit
}
