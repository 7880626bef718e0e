package scheduler

import (
	"sort"
	"sync"
	"time"

	"overlaycam/internal/core/ports"
)

// ManualScheduler runs tasks only when Tick is called. It drives render loops
// deterministically in tests and in offline rendering.
type ManualScheduler struct {
	mu     sync.Mutex
	tasks  map[int]func(time.Time)
	nextID int
	now    time.Time
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{
		tasks: make(map[int]func(time.Time)),
		now:   time.Unix(0, 0),
	}
}

func (s *ManualScheduler) Schedule(task func(now time.Time)) ports.TaskHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.tasks[id] = task
	return &manualTask{scheduler: s, id: id}
}

// Tick advances the clock by d and runs every live task once, in
// registration order.
func (s *ManualScheduler) Tick(d time.Duration) {
	s.mu.Lock()
	s.now = s.now.Add(d)
	now := s.now
	ids := make([]int, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	sort.Ints(ids)
	for _, id := range ids {
		s.mu.Lock()
		task, ok := s.tasks[id]
		s.mu.Unlock()
		if ok {
			task(now)
		}
	}
}

// TickN calls Tick n times.
func (s *ManualScheduler) TickN(n int, d time.Duration) {
	for i := 0; i < n; i++ {
		s.Tick(d)
	}
}

// Pending is the number of live tasks.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

type manualTask struct {
	scheduler *ManualScheduler
	id        int
}

func (t *manualTask) Cancel() {
	t.scheduler.mu.Lock()
	delete(t.scheduler.tasks, t.id)
	t.scheduler.mu.Unlock()
}

