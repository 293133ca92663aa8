package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntervalDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"15m", 15 * time.Minute, true},
		{"1h", time.Hour, true},
		{"4h", 4 * time.Hour, true},
		{"1d", 24 * time.Hour, true},
		{"1w", 7 * 24 * time.Hour, true},
		{" 30M ", 30 * time.Minute, true},
		{"", 0, false},
		{"m", 0, false},
		{"0m", 0, false},
		{"-5m", 0, false},
		{"15x", 0, false},
		{"abc", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseIntervalDuration(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestCycleSchedulerRunsImmediatelyAndStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sched := NewCycleScheduler(ctx, time.Hour)
	sched.Name = "test"
	sched.RunImmediately = true

	runs := 0
	done := make(chan struct{})
	go func() {
		sched.Start(func() {
			runs++
			cancel()
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	require.Equal(t, 1, runs)
}

func TestCycleSchedulerWaitsBetweenCycles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched := NewCycleScheduler(ctx, 10*time.Millisecond)

	runs := make(chan struct{}, 4)
	go sched.Start(func() {
		runs <- struct{}{}
	})

	// RunImmediately is false: the first run only lands after one interval.
	for i := 0; i < 2; i++ {
		select {
		case <-runs:
		case <-time.After(2 * time.Second):
			t.Fatalf("cycle %d never ran", i+1)
		}
	}
	cancel()
}

func TestCycleSchedulerRejectsInvalidInterval(t *testing.T) {
	sched := NewCycleScheduler(context.Background(), 0)
	ran := false
	sched.Start(func() { ran = true })
	assert.False(t, ran)
}
