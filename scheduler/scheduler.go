package scheduler

import (
	"fmt"
	"sync"
	"time"
)

// Cancellable stops a scheduled task. Cancel is idempotent.
type Cancellable interface {
	Cancel()
}

// Scheduler runs callbacks on a recurring cadence.
type Scheduler interface {
	ScheduleRecurring(interval time.Duration, fn func()) Cancellable
}

// Ticker is a Scheduler that runs each task on its own goroutine driven by time.Ticker.
// A task never overlaps with itself: a tick that fires while the previous run is still
// in progress is skipped.
type Ticker struct{}

func NewTicker() *Ticker {
	return &Ticker{}
}

// ScheduleRecurring panics if interval is not positive or fn is nil.
func (t *Ticker) ScheduleRecurring(interval time.Duration, fn func()) Cancellable {
	if interval <= 0 {
		panic(fmt.Sprintf("scheduler: non-positive interval %s", interval))
	}

	if fn == nil {
		panic("scheduler: nil task")
	}

	task := &tickerTask{
		done: make(chan struct{}),
	}

	go task.run(interval, fn)

	return task
}

type tickerTask struct {
	once sync.Once
	done chan struct{}
}

func (t *tickerTask) run(interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			select {
			case <-t.done:
				return
			default:
				fn()
			}
		}
	}
}

// Cancel stops the task. A run in progress is not interrupted, so it is safe to
// cancel the task from within its own callback.
func (t *tickerTask) Cancel() {
	t.once.Do(func() {
		close(t.done)
	})
}
