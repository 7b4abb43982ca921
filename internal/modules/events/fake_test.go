package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mx-space/folio/internal/models"
	"github.com/mx-space/folio/internal/pkg/taskqueue"
)

type memStore struct {
	mu        sync.Mutex
	analytics []models.AnalyticsEvent
	activity  []models.ActivityLogEntry
	// failAt makes InsertAnalytics stop at that index, like an ordered
	// insert hitting a write error.
	failAt      int
	activityErr error
}

func newMemStore() *memStore { return &memStore{failAt: -1} }

func (m *memStore) InsertAnalytics(_ context.Context, events []models.AnalyticsEvent) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range events {
		if i == m.failAt {
			return i, errors.New("write failed")
		}
		m.analytics = append(m.analytics, e)
	}
	return len(events), nil
}

func (m *memStore) InsertActivity(_ context.Context, entry models.ActivityLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activityErr != nil {
		return m.activityErr
	}
	m.activity = append(m.activity, entry)
	return nil
}

func (m *memStore) DeleteAnalyticsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.analytics[:0]
	var n int64
	for _, e := range m.analytics {
		if e.Timestamp.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	m.analytics = kept
	return n, nil
}

func (m *memStore) activityCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.activity)
}

func (m *memStore) analyticsCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.analytics)
}

// syncDispatcher runs tasks inline.
type syncDispatcher struct {
	errs []error
	full bool
}

func (d *syncDispatcher) Submit(task taskqueue.Task) error {
	if d.full {
		return taskqueue.ErrQueueFull
	}
	if err := task.Fn(context.Background()); err != nil {
		d.errs = append(d.errs, err)
	}
	return nil
}
