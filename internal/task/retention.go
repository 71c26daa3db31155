package task

import (
	"context"
	"time"
)

// DefaultSweepInterval is used by RunSweeper when interval is not positive
const DefaultSweepInterval = time.Minute

// Sweep removes tasks that finished, or reached a terminal state, more than
// the retention period before now. It returns the number removed.
func (e *Engine) Sweep(now time.Time) int {
	if e.retention <= 0 {
		return 0
	}

	e.mu.Lock()
	var removed []string
	for id, t := range e.tasks {
		doneAt, done := finishedAt(t)
		if done && now.Sub(doneAt) >= e.retention {
			delete(e.tasks, id)
			removed = append(removed, id)
		}
	}
	e.mu.Unlock()

	if len(removed) > 0 {
		e.logger.Debug("swept finished tasks", "count", len(removed))
	}
	return len(removed)
}

func finishedAt(t *Task) (time.Time, bool) {
	if t.FinishedAt != nil {
		return *t.FinishedAt, true
	}
	if IsTerminal(t.State) {
		return t.UpdatedAt, true
	}
	return time.Time{}, false
}

// RunSweeper calls Sweep every interval until ctx is done
func (e *Engine) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Sweep(e.now())
		}
	}
}

// StartSweeper runs RunSweeper in the background. The returned function
// stops it and waits for the goroutine to exit; calling it again is a no-op.
func (e *Engine) StartSweeper(ctx context.Context, interval time.Duration) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.RunSweeper(ctx, interval)
	}()
	return func() {
		cancel()
		<-done
	}
}
