package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestManualSchedulerRunsTasksPerTick(t *testing.T) {
	s := NewManualScheduler()

	var a, b int
	s.Schedule(func(time.Time) { a++ })
	hb := s.Schedule(func(time.Time) { b++ })

	s.TickN(3, 16*time.Millisecond)
	hb.Cancel()
	hb.Cancel()
	s.Tick(16 * time.Millisecond)

	assert.Equal(t, 4, a)
	assert.Equal(t, 3, b)
	assert.Equal(t, 1, s.Pending())
}

func TestManualSchedulerAdvancesClock(t *testing.T) {
	s := NewManualScheduler()

	var seen []time.Time
	s.Schedule(func(now time.Time) { seen = append(seen, now) })
	s.TickN(2, time.Second)

	require.Len(t, seen, 2)
	assert.Equal(t, time.Second, seen[1].Sub(seen[0]))
}

func TestManualSchedulerTaskCanCancelItself(t *testing.T) {
	s := NewManualScheduler()

	var runs int
	var h interface{ Cancel() }
	h = s.Schedule(func(time.Time) {
		runs++
		h.Cancel()
	})
	s.TickN(3, time.Millisecond)

	assert.Equal(t, 1, runs)
	assert.Equal(t, 0, s.Pending())
}

func TestTickerSchedulerCancel(t *testing.T) {
	s := NewTickerScheduler(200, zap.NewNop().Sugar())
	assert.Equal(t, 5*time.Millisecond, s.Interval())

	var ticks atomic.Int64
	h := s.Schedule(func(time.Time) { ticks.Add(1) })

	require.Eventually(t, func() bool { return ticks.Load() >= 2 }, time.Second, time.Millisecond)
	h.Cancel()
	h.Cancel()

	task := h.(*tickerTask)
	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("task goroutine did not exit")
	}

	after := ticks.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, ticks.Load())
}

func TestTickerSchedulerRecoversPanickingTask(t *testing.T) {
	s := NewTickerScheduler(500, zap.NewNop().Sugar())
	h := s.Schedule(func(time.Time) { panic("boom") })

	task := h.(*tickerTask)
	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("panicking task was not cancelled")
	}
}
