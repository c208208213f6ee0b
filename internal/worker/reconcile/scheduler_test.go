package reconcile

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSchedulerRunsImmediatelyThenOnInterval(t *testing.T) {
	s := New(nil, nil)
	var runs atomic.Int32
	s.Register("counter", 10*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	s.Start(context.Background())
	time.Sleep(55 * time.Millisecond)
	s.Stop()

	assert.GreaterOrEqual(t, runs.Load(), int32(3))
}

func TestSchedulerSkipsOverlappingTicks(t *testing.T) {
	s := New(nil, nil)
	var concurrent, maxConcurrent, runs atomic.Int32
	s.Register("slow", 5*time.Millisecond, func(ctx context.Context) error {
		cur := concurrent.Add(1)
		defer concurrent.Add(-1)
		for {
			prev := maxConcurrent.Load()
			if cur <= prev || maxConcurrent.CompareAndSwap(prev, cur) {
				break
			}
		}
		runs.Add(1)
		time.Sleep(30 * time.Millisecond)
		return nil
	})

	s.Start(context.Background())
	time.Sleep(70 * time.Millisecond)
	s.Stop()

	assert.Equal(t, int32(1), maxConcurrent.Load(), "a tick must never overlap its predecessor")
	assert.LessOrEqual(t, runs.Load(), int32(4))
}

func TestSchedulerStopAwaitsInFlightTick(t *testing.T) {
	s := New(nil, nil)
	started := make(chan struct{})
	var finished atomic.Bool
	s.Register("inflight", time.Hour, func(ctx context.Context) error {
		close(started)
		time.Sleep(30 * time.Millisecond)
		finished.Store(true)
		return nil
	})

	s.Start(context.Background())
	<-started
	s.Stop()

	assert.True(t, finished.Load(), "Stop must wait for the in-flight tick")
}

func TestSchedulerIsolatesFailingJob(t *testing.T) {
	s := New(nil, nil)
	var healthyRuns atomic.Int32
	s.Register("failing", 10*time.Millisecond, func(ctx context.Context) error {
		return errors.New("candidate query failed")
	})
	s.Register("panicking", 10*time.Millisecond, func(ctx context.Context) error {
		panic("bad record")
	})
	s.Register("healthy", 10*time.Millisecond, func(ctx context.Context) error {
		healthyRuns.Add(1)
		return nil
	})

	s.Start(context.Background())
	time.Sleep(45 * time.Millisecond)
	s.Stop()

	assert.GreaterOrEqual(t, healthyRuns.Load(), int32(2))
}

func TestSchedulerStartTwiceIsNoop(t *testing.T) {
	s := New(nil, nil)
	var runs atomic.Int32
	s.Register("counter", time.Hour, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	ctx := context.Background()
	s.Start(ctx)
	s.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	s.Stop()
	s.Stop()

	assert.Equal(t, int32(1), runs.Load())
}
