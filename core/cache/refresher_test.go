package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRefresher_Submit(t *testing.T) {
	block := make(chan struct{})
	r := NewRefresher(1, 2, nil)

	var ran atomic.Int32
	blocking := func(ctx context.Context) error {
		select {
		case <-block:
		case <-ctx.Done():
		}
		ran.Add(1)
		return nil
	}

	assert.True(t, r.Submit(Task{Key: "a", Run: blocking}))
	// wait for the worker to pick "a" up so the queue is empty again
	assert.Eventually(t, func() bool { return len(r.queue) == 0 }, time.Second, time.Millisecond)

	assert.False(t, r.Submit(Task{Key: "a", Run: blocking}), "pending key is coalesced")
	assert.True(t, r.Submit(Task{Key: "b", Run: blocking}))
	assert.True(t, r.Submit(Task{Key: "c", Run: blocking}))
	assert.False(t, r.Submit(Task{Key: "d", Run: blocking}), "full queue drops")

	close(block)
	assert.Eventually(t, func() bool { return r.Stats().Succeeded == 3 }, time.Second, time.Millisecond)

	r.Stop()
	assert.False(t, r.Submit(Task{Key: "e", Run: blocking}), "stopped refresher drops")

	stats := r.Stats()
	assert.Equal(t, uint64(3), stats.Submitted)
	assert.Equal(t, uint64(2), stats.Dropped)
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, int32(3), ran.Load())
}

func TestRefresher_failures(t *testing.T) {
	var reported atomic.Int32
	r := NewRefresher(2, 4, func(key string, err error) {
		reported.Add(1)
	})

	r.Submit(Task{Key: "err", Run: func(context.Context) error { return errors.New("boom") }})
	r.Submit(Task{Key: "panic", Run: func(context.Context) error { panic("boom") }})

	assert.Eventually(t, func() bool { return r.Stats().Failed == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(2), reported.Load())

	r.Stop()
	r.Stop() // idempotent
}

func TestRefresher_StopCancelsRunningTasks(t *testing.T) {
	r := NewRefresher(1, 1, nil)
	started := make(chan struct{})
	r.Submit(Task{Key: "slow", Run: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}})
	<-started

	r.Stop()
	assert.Equal(t, uint64(1), r.Stats().Failed)
}
