package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestScheduler_RunsUntilCancelled(t *testing.T) {
	s := New(nil)
	var n atomic.Int32
	s.Add(Task{Name: "count", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
		n.Add(1)
		return nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return n.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestScheduler_ErrorsAndPanicsKeepLooping(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := New(zap.New(core))

	var failing, panicking atomic.Int32
	s.Add(Task{Name: "failing", Interval: 2 * time.Millisecond, Run: func(context.Context) error {
		failing.Add(1)
		return errors.New("boom")
	}})
	s.Add(Task{Name: "panicking", Interval: 2 * time.Millisecond, Run: func(context.Context) error {
		panicking.Add(1)
		panic("bad state")
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return failing.Load() >= 2 && panicking.Load() >= 2
	}, time.Second, time.Millisecond)
	cancel()

	failed := logs.FilterMessage("Background task failed")
	assert.NotZero(t, failed.FilterField(zap.String("task", "failing")).Len())
	panicked := failed.FilterField(zap.String("task", "panicking")).All()
	require.NotEmpty(t, panicked)
	assert.Contains(t, panicked[0].ContextMap()["error"], "panic: bad state")
}

func TestScheduler_DisabledTasks(t *testing.T) {
	s := New(nil)
	s.Add(Task{Name: "off", Interval: 0, Run: func(context.Context) error { return nil }})
	s.Add(Task{Name: "nil", Interval: time.Second})
	s.Add(Task{Name: "on", Interval: time.Second, Run: func(context.Context) error { return nil }})
	assert.Equal(t, []string{"on"}, s.Tasks())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, New(nil).Run(ctx), "no tasks returns at once")
}
