package usage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mx-space/folio/internal/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterKey struct{ source, day string }

type memStore struct {
	mu       sync.Mutex
	counters map[counterKey]int
	expiry   map[counterKey]time.Time
	err      error
}

func newMemStore() *memStore {
	return &memStore{counters: map[counterKey]int{}, expiry: map[counterKey]time.Time{}}
}

func (m *memStore) Increment(_ context.Context, source, day string, limit int, _, expiresAt time.Time) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, false, m.err
	}
	k := counterKey{source, day}
	if m.counters[k] >= limit {
		return 0, false, nil
	}
	if _, ok := m.expiry[k]; !ok {
		m.expiry[k] = expiresAt
	}
	m.counters[k]++
	return m.counters[k], true, nil
}

func (m *memStore) Count(_ context.Context, source, day string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[counterKey{source, day}], m.err
}

func newTestService(store Store, at time.Time) (*Service, *time.Time) {
	svc := NewService(store, time.UTC)
	clock := at
	svc.now = func() time.Time { return clock }
	return svc, &clock
}

func TestCheckAndIncrementDailyLimit(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestService(newMemStore(), time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	const source = "tempmail:1.2.3.4"

	for i := 1; i <= 5; i++ {
		count, err := svc.CheckAndIncrement(ctx, source, 5)
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}

	_, err := svc.CheckAndIncrement(ctx, source, 5)
	assert.ErrorIs(t, err, apperr.ErrLimitExceeded)

	*clock = clock.Add(24 * time.Hour)
	count, err := svc.CheckAndIncrement(ctx, source, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "a new day starts a new counter")
}

func TestCheckAndIncrementSourcesAreIndependent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(newMemStore(), time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))

	_, err := svc.CheckAndIncrement(ctx, "a", 1)
	require.NoError(t, err)
	_, err = svc.CheckAndIncrement(ctx, "a", 1)
	assert.ErrorIs(t, err, apperr.ErrLimitExceeded)

	_, err = svc.CheckAndIncrement(ctx, "b", 1)
	assert.NoError(t, err)
}

func TestCheckAndIncrementConcurrent(t *testing.T) {
	svc, _ := newTestService(newMemStore(), time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	var ok, denied atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CheckAndIncrement(context.Background(), "ip", 10)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, apperr.ErrLimitExceeded):
				denied.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(10), ok.Load())
	assert.Equal(t, int32(40), denied.Load())
}

func TestCheckAndIncrementValidation(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store, time.Now())

	_, err := svc.CheckAndIncrement(context.Background(), "  ", 5)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.CheckAndIncrement(context.Background(), "ip", 0)
	assert.ErrorIs(t, err, apperr.ErrLimitExceeded)
	assert.Empty(t, store.counters, "non-positive limits never touch the store")
}

func TestCheckAndIncrementStoreError(t *testing.T) {
	store := newMemStore()
	store.err = apperr.Connection(nil, "database unreachable")
	svc, _ := newTestService(store, time.Now())
	_, err := svc.CheckAndIncrement(context.Background(), "ip", 5)
	assert.ErrorIs(t, err, apperr.ErrConnection)
}

func TestDayKeyUsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	instant := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, "2024-05-01", NewService(nil, nil).DayKey(instant))
	assert.Equal(t, "2024-05-02", NewService(nil, tokyo).DayKey(instant))
}

func TestCounterExpiry(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store, time.Date(2024, 5, 1, 23, 59, 0, 0, time.UTC))
	_, err := svc.CheckAndIncrement(context.Background(), "ip", 3)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC), store.expiry[counterKey{"ip", "2024-05-01"}])
}

func TestCount(t *testing.T) {
	svc, _ := newTestService(newMemStore(), time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	n, err := svc.Count(context.Background(), "ip")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, _ = svc.CheckAndIncrement(context.Background(), "ip", 3)
	n, err = svc.Count(context.Background(), "ip")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
