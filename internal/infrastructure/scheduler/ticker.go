package scheduler

import (
	"sync"
	"time"

	"overlaycam/internal/core/ports"

	"go.uber.org/zap"
)

// DefaultRefreshRate approximates a display refresh.
const DefaultRefreshRate = 60

// TickerScheduler runs each task on its own goroutine at a fixed rate.
type TickerScheduler struct {
	interval time.Duration
	logger   *zap.SugaredLogger
}

// NewTickerScheduler creates a scheduler ticking refreshRate times per second.
func NewTickerScheduler(refreshRate int, logger *zap.SugaredLogger) *TickerScheduler {
	if refreshRate <= 0 {
		refreshRate = DefaultRefreshRate
	}
	return &TickerScheduler{
		interval: time.Second / time.Duration(refreshRate),
		logger:   logger,
	}
}

func (s *TickerScheduler) Interval() time.Duration {
	return s.interval
}

// Schedule starts task on the next tick. Ticks missed while a task runs are
// dropped, so the task never runs concurrently with itself.
func (s *TickerScheduler) Schedule(task func(now time.Time)) ports.TaskHandle {
	t := &tickerTask{
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
	go t.run(s.interval, task, s.logger)
	return t
}

type tickerTask struct {
	stopChan chan struct{}
	done     chan struct{}
	once     sync.Once
}

func (t *tickerTask) run(interval time.Duration, task func(time.Time), logger *zap.SugaredLogger) {
	defer close(t.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			if !t.invoke(task, now, logger) {
				return
			}
		case <-t.stopChan:
			return
		}
	}
}

// invoke runs one tick and reports whether the loop should continue. A
// panicking task is cancelled instead of taking the process down.
func (t *tickerTask) invoke(task func(time.Time), now time.Time, logger *zap.SugaredLogger) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorw("scheduled task panicked, cancelling", "panic", r)
			ok = false
		}
	}()
	select {
	case <-t.stopChan:
		return false
	default:
	}
	task(now)
	return true
}

// Cancel stops future ticks. It does not wait for a running tick.
func (t *tickerTask) Cancel() {
	t.once.Do(func() {
		close(t.stopChan)
	})
}

// Done is closed once the task goroutine has exited.
func (t *tickerTask) Done() <-chan struct{} {
	return t.done
}
