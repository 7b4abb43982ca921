package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context) error { return nil }

func TestRunSyncRecordsOutcome(t *testing.T) {
	s := New(nil, nil)
	require.NoError(t, s.Register(Job{Name: "ok", Spec: "@hourly", Fn: noop}))
	require.NoError(t, s.Register(Job{Name: "bad", Spec: "@hourly", Fn: func(context.Context) error { return errors.New("boom") }}))

	require.NoError(t, s.RunSync(context.Background(), "ok"))
	require.NoError(t, s.RunSync(context.Background(), "bad"))

	ok, err := s.Get("ok")
	require.NoError(t, err)
	assert.Equal(t, StatusFulfill, ok.Status)
	assert.NotNil(t, ok.LastRunAt)

	bad, err := s.Get("bad")
	require.NoError(t, err)
	assert.Equal(t, StatusReject, bad.Status)
	assert.Equal(t, "boom", bad.Message)
}

func TestRegisterRejectsBadInput(t *testing.T) {
	s := New(nil, nil)
	assert.Error(t, s.Register(Job{Name: "broken", Spec: "every tuesday", Fn: noop}))
	require.NoError(t, s.Register(Job{Name: "twice", Spec: "@daily", Fn: noop}))
	assert.Error(t, s.Register(Job{Name: "twice", Spec: "@daily", Fn: noop}))
}

func TestUnknownJob(t *testing.T) {
	s := New(nil, nil)
	assert.ErrorIs(t, s.Run(context.Background(), "missing"), ErrUnknownJob)
	_, err := s.Get("missing")
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestListSortedByName(t *testing.T) {
	s := New(nil, nil)
	require.NoError(t, s.Register(Job{Name: "sweep_sessions", Spec: "@every 10m", Fn: noop}))
	require.NoError(t, s.Register(Job{Name: "cleanup_analytics", Spec: "0 3 * * *", Fn: noop}))

	items := s.List()
	require.Len(t, items, 2)
	assert.Equal(t, "cleanup_analytics", items[0].Name)
	assert.Equal(t, StatusIdle, items[1].Status)
	assert.Nil(t, items[0].NextDate)
}

func TestStartRunsOnSchedule(t *testing.T) {
	s := New(nil, nil)
	var runs atomic.Int32
	require.NoError(t, s.Register(Job{Name: "tick", Spec: "@every 1s", Fn: func(context.Context) error {
		runs.Add(1)
		return nil
	}}))

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)

	item, err := s.Get("tick")
	require.NoError(t, err)
	assert.NotNil(t, item.NextDate)

	cancel()
	s.Wait()
}
