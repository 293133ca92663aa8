package scheduler

import (
	"context"
	"time"

	"mako/internal/logger"
)

// CycleScheduler runs a task at a fixed interval. Waits are context-aware so a
// shutdown signal interrupts the sleep between cycles but never a running task.
type CycleScheduler struct {
	Name           string
	Interval       time.Duration
	RunImmediately bool

	ctx   context.Context
	nowFn func() time.Time
}

func NewCycleScheduler(ctx context.Context, interval time.Duration) *CycleScheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	return &CycleScheduler{
		Interval: interval,
		ctx:      ctx,
		nowFn:    time.Now,
	}
}

// Start blocks until the context is cancelled. Cycles run strictly
// sequentially; the next wait begins only after the task returns.
func (s *CycleScheduler) Start(task func()) {
	if s == nil || task == nil {
		return
	}
	if s.Interval <= 0 {
		logger.Warnf("CycleScheduler: invalid interval=%s, exit", s.Interval)
		return
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}

	prefix := "CycleScheduler"
	if s.Name != "" {
		prefix = prefix + "[" + s.Name + "]"
	}
	logger.Infof("%s: started interval=%s run_immediately=%v", prefix, s.Interval, s.RunImmediately)

	if s.RunImmediately {
		task()
	}

	for {
		if !s.wait(s.Interval) {
			logger.Infof("%s: ctx done, exit", prefix)
			return
		}
		task()
	}
}

func (s *CycleScheduler) wait(d time.Duration) bool {
	if d <= 0 {
		select {
		case <-s.ctx.Done():
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-s.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
