package taskqueue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRunsTasks(t *testing.T) {
	d := NewDispatcher(Options{Workers: 2, QueueSize: 8}, nil)
	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, d.Submit(Task{Name: "count", Fn: func(context.Context) error {
			ran.Add(1)
			return nil
		}}))
	}
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, int32(5), ran.Load())
}

func TestFailuresAreReported(t *testing.T) {
	var hookErr error
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1, OnError: func(_ string, err error) { hookErr = err }}, nil)
	require.NoError(t, d.Submit(Task{Name: "audit", Fn: func(context.Context) error { return errors.New("insert failed") }}))
	require.NoError(t, d.Close(context.Background()))

	select {
	case err := <-d.Errors():
		assert.Contains(t, err.Error(), "audit: insert failed")
	default:
		t.Fatal("expected an error on the channel")
	}
	assert.EqualError(t, hookErr, "insert failed")
	assert.Equal(t, int64(1), d.Failed())
}

func TestSubmitDropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var drops atomic.Int32
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1, OnDrop: func(string) { drops.Add(1) }}, nil)

	require.NoError(t, d.Submit(Task{Name: "block", Fn: func(context.Context) error {
		close(started)
		<-release
		return nil
	}}))
	<-started
	require.NoError(t, d.Submit(Task{Name: "queued", Fn: func(context.Context) error { return nil }}))

	err := d.Submit(Task{Name: "overflow", Fn: func(context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, int32(1), drops.Load())
	assert.Equal(t, int64(1), d.Dropped())

	close(release)
	require.NoError(t, d.Close(context.Background()))
}

func TestPanicIsRecovered(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1}, nil)
	require.NoError(t, d.Submit(Task{Name: "boom", Fn: func(context.Context) error { panic("bad") }}))
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, int64(1), d.Failed())
}

func TestSubmitAfterClose(t *testing.T) {
	d := NewDispatcher(Options{}, nil)
	require.NoError(t, d.Close(context.Background()))
	assert.ErrorIs(t, d.Submit(Task{Name: "late", Fn: func(context.Context) error { return nil }}), ErrClosed)
}

func TestCloseHonoursDeadline(t *testing.T) {
	release := make(chan struct{})
	d := NewDispatcher(Options{Workers: 1}, nil)
	require.NoError(t, d.Submit(Task{Name: "slow", Fn: func(context.Context) error {
		<-release
		return nil
	}}))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)
	close(release)
}
