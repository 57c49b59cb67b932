// Package scheduler runs periodic background tasks, one goroutine each.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Task is one periodic unit of work.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler owns a fixed set of tasks.
type Scheduler struct {
	tasks  []Task
	logger *zap.Logger
}

func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{logger: logger}
}

// Add registers a task. A task with a non-positive interval is disabled.
func (s *Scheduler) Add(t Task) {
	if t.Interval <= 0 || t.Run == nil {
		s.logger.Info("Background task disabled", zap.String("task", t.Name))
		return
	}
	s.tasks = append(s.tasks, t)
}

// Tasks returns the names of the enabled tasks.
func (s *Scheduler) Tasks() []string {
	out := make([]string, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Name)
	}
	return out
}

// Run starts every task and blocks until ctx is done. Each task runs once
// immediately and then on its interval. Task errors and panics are logged
// and never stop the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range s.tasks {
		g.Go(func() error {
			s.loop(gctx, t)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, t Task) {
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		s.tick(ctx, t)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, t Task) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	err := s.safeRun(ctx, t)
	taskDuration.WithLabelValues(t.Name).Observe(time.Since(start).Seconds())

	if err != nil {
		taskRuns.WithLabelValues(t.Name, "error").Inc()
		s.logger.Error("Background task failed", zap.String("task", t.Name), zap.Error(err))
		return
	}
	taskRuns.WithLabelValues(t.Name, "ok").Inc()
}

func (s *Scheduler) safeRun(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.Run(ctx)
}
