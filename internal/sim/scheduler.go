package sim

import (
	"maps"
	"slices"
	"time"
)

// TaskID identifies a scheduled task. Zero is never issued.
type TaskID uint64

type task struct {
	interval time.Duration
	next     time.Duration
	fn       func()
}

// Scheduler runs periodic tasks against simulated time. Each task keeps its
// own next-fire timestamp; due tasks fire in TaskID order.
type Scheduler struct {
	now    time.Duration
	tasks  map[TaskID]*task
	nextID TaskID
}

// NewScheduler returns an empty scheduler at time zero.
func NewScheduler() *Scheduler {
	return &Scheduler{tasks: make(map[TaskID]*task)}
}

// Every schedules fn to run every interval, starting at the next Advance.
func (s *Scheduler) Every(interval time.Duration, fn func()) TaskID {
	s.nextID++
	s.tasks[s.nextID] = &task{interval: interval, next: s.now, fn: fn}
	return s.nextID
}

// Cancel removes a task. Unknown IDs are ignored.
func (s *Scheduler) Cancel(id TaskID) {
	delete(s.tasks, id)
}

// Len returns the number of scheduled tasks.
func (s *Scheduler) Len() int {
	return len(s.tasks)
}

// Now returns the simulated time of the last Advance.
func (s *Scheduler) Now() time.Duration {
	return s.now
}

// Advance moves the clock to now and fires every due task once. A task that
// fell several intervals behind fires once and is rescheduled from now.
// Tasks cancelled by an earlier task in the same pass do not fire; tasks
// added during the pass wait for the next one.
func (s *Scheduler) Advance(now time.Duration) int {
	s.now = now
	fired := 0
	for _, id := range slices.Sorted(maps.Keys(s.tasks)) {
		t, ok := s.tasks[id]
		if !ok || t.next > now {
			continue
		}
		t.next += t.interval
		if t.next <= now {
			t.next = now + t.interval
		}
		t.fn()
		fired++
	}
	return fired
}
