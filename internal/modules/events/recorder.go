package events

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mx-space/folio/internal/models"
	"github.com/mx-space/folio/internal/pkg/apperr"
	"github.com/mx-space/folio/internal/pkg/metrics"
	"github.com/mx-space/folio/internal/pkg/taskqueue"
	"go.uber.org/zap"
)

const (
	MaxBatchSize = 100

	streamAnalytics = "analytics"
	streamActivity  = "activity"
)

// Dispatcher runs fire-and-forget writes off the request path.
type Dispatcher interface {
	Submit(task taskqueue.Task) error
}

// Recorder is the Event Recorder.
type Recorder struct {
	store      Store
	dispatcher Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

func NewRecorder(store Store, dispatcher Dispatcher, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{store: store, dispatcher: dispatcher, logger: logger.Named("EventRecorder"), now: time.Now}
}

// DispatcherOptions wires queue drops and write failures to the event
// metrics.
func DispatcherOptions(workers, queueSize int) taskqueue.Options {
	return taskqueue.Options{
		Workers:   workers,
		QueueSize: queueSize,
		OnDrop: func(name string) {
			metrics.EventsDropped.WithLabelValues(name, "queue_full").Inc()
		},
		OnError: func(name string, _ error) {
			metrics.EventsDropped.WithLabelValues(name, "write_failed").Inc()
		},
	}
}

// RecordBatch validates and appends events in one ordered write. The count
// is what the store durably wrote, also when err is non-nil.
func (r *Recorder) RecordBatch(ctx context.Context, events []models.AnalyticsEvent) (int, error) {
	batch, err := r.prepareBatch(events)
	if err != nil {
		return 0, err
	}
	n, err := r.store.InsertAnalytics(ctx, batch)
	if n > 0 {
		metrics.EventsRecorded.WithLabelValues(streamAnalytics).Add(float64(n))
	}
	return n, err
}

// Track queues a single analytics event. It never blocks and never fails
// the caller.
func (r *Recorder) Track(event models.AnalyticsEvent) {
	batch, err := r.prepareBatch([]models.AnalyticsEvent{event})
	if err != nil {
		r.logger.Debug("drop invalid analytics event", zap.Error(err))
		return
	}
	r.submit(streamAnalytics, func(ctx context.Context) error {
		n, err := r.store.InsertAnalytics(ctx, batch)
		if n > 0 {
			metrics.EventsRecorded.WithLabelValues(streamAnalytics).Add(float64(n))
		}
		return err
	})
}

// RecordActivity queues an audit entry. Failures are logged, counted and
// sent to the dispatcher's error channel; they never reach the caller.
func (r *Recorder) RecordActivity(entry models.ActivityLogEntry) {
	if !entry.Action.Valid() || !entry.Entity.Valid() {
		r.logger.Warn("drop invalid activity entry",
			zap.String("action", string(entry.Action)),
			zap.String("entity", string(entry.Entity)))
		metrics.EventsDropped.WithLabelValues(streamActivity, "invalid").Inc()
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.now().UTC()
	}
	r.submit(streamActivity, func(ctx context.Context) error {
		if err := r.store.InsertActivity(ctx, entry); err != nil {
			r.logger.Error("activity entry lost",
				zap.String("action", string(entry.Action)),
				zap.String("entity", string(entry.Entity)),
				zap.String("entityId", entry.EntityID),
				zap.Error(err))
			return err
		}
		metrics.EventsRecorded.WithLabelValues(streamActivity).Inc()
		return nil
	})
}

// PurgeAnalytics deletes analytics events older than retention.
func (r *Recorder) PurgeAnalytics(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, apperr.Validation("retention must be positive")
	}
	return r.store.DeleteAnalyticsBefore(ctx, r.now().UTC().Add(-retention))
}

func (r *Recorder) submit(stream string, fn func(ctx context.Context) error) {
	if r.dispatcher == nil {
		go func() { _ = fn(context.Background()) }()
		return
	}
	// Drops are reported by the dispatcher itself.
	_ = r.dispatcher.Submit(taskqueue.Task{Name: stream, Fn: fn})
}

func (r *Recorder) prepareBatch(events []models.AnalyticsEvent) ([]models.AnalyticsEvent, error) {
	if len(events) == 0 {
		return nil, apperr.InvalidBatch("events must not be empty")
	}
	if len(events) > MaxBatchSize {
		return nil, apperr.InvalidBatch("at most %d events per batch", MaxBatchSize)
	}
	now := r.now().UTC()
	out := make([]models.AnalyticsEvent, len(events))
	for i, e := range events {
		if !e.Kind.Valid() {
			return nil, apperr.InvalidBatch("event %d: unknown kind %q", i, e.Kind)
		}
		e.Path = strings.TrimSpace(e.Path)
		if e.Path == "" {
			return nil, apperr.InvalidBatch("event %d: path is required", i)
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.Timestamp.IsZero() {
			e.Timestamp = now
		}
		out[i] = e
	}
	return out, nil
}
