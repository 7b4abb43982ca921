package cron

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	robfig "github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ErrUnknownJob is returned for a name that was never registered.
var ErrUnknownJob = errors.New("job not found")

// JobStatus represents the last known state of a job.
type JobStatus string

const (
	StatusIdle    JobStatus = "idle"
	StatusRunning JobStatus = "running"
	StatusFulfill JobStatus = "fulfill"
	StatusReject  JobStatus = "reject"
)

// Job defines a background task. Spec is a standard five-field cron
// expression or a descriptor such as "@every 10m" or "@daily".
type Job struct {
	Name        string
	Description string
	Spec        string
	Fn          func(ctx context.Context) error
}

type jobState struct {
	Job
	entry     robfig.EntryID
	mu        sync.Mutex
	status    JobStatus
	message   string
	lastRunAt *time.Time
}

// ListItem is the serializable representation of a job for the API.
type ListItem struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Spec        string     `json:"spec"`
	Status      JobStatus  `json:"status"`
	Message     string     `json:"message,omitempty"`
	NextDate    *time.Time `json:"nextDate,omitempty"`
	LastRunAt   *time.Time `json:"lastRunAt,omitempty"`
}

// Scheduler runs named cron jobs. A job never overlaps with itself.
type Scheduler struct {
	logger *zap.Logger
	cron   *robfig.Cron
	ctx    context.Context
	mu     sync.RWMutex
	jobs   map[string]*jobState
	wg     sync.WaitGroup
}

func New(logger *zap.Logger, loc *time.Location) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		logger: logger.Named("CronService"),
		cron:   robfig.New(robfig.WithLocation(loc)),
		ctx:    context.Background(),
		jobs:   make(map[string]*jobState),
	}
}

// Register adds a job. Must be called before Start.
func (s *Scheduler) Register(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[job.Name]; dup {
		return fmt.Errorf("job %q already registered", job.Name)
	}
	js := &jobState{Job: job, status: StatusIdle}
	id, err := s.cron.AddFunc(job.Spec, func() { s.execute(s.runContext(), js) })
	if err != nil {
		return fmt.Errorf("job %q: invalid spec %q: %w", job.Name, job.Spec, err)
	}
	js.entry = id
	s.jobs[job.Name] = js
	return nil
}

// Start runs the schedule until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-ctx.Done()
		<-s.cron.Stop().Done()
	}()
}

// Wait blocks until the scheduler has stopped and running jobs finished.
func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) runContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx
}

func (s *Scheduler) execute(ctx context.Context, js *jobState) {
	js.mu.Lock()
	if js.status == StatusRunning {
		js.mu.Unlock()
		s.logger.Debug("job still running, skipped", zap.String("job", js.Name))
		return
	}
	js.status = StatusRunning
	js.mu.Unlock()

	started := time.Now()
	err := js.Fn(ctx)

	js.mu.Lock()
	js.lastRunAt = &started
	if err != nil {
		js.status = StatusReject
		js.message = err.Error()
	} else {
		js.status = StatusFulfill
		js.message = ""
	}
	js.mu.Unlock()

	if err != nil {
		s.logger.Warn("job failed", zap.String("job", js.Name), zap.Error(err))
		return
	}
	s.logger.Debug("job finished", zap.String("job", js.Name), zap.Duration("took", time.Since(started)))
}

// Run triggers a job by name in the background.
func (s *Scheduler) Run(ctx context.Context, name string) error {
	js, ok := s.lookup(name)
	if !ok {
		return ErrUnknownJob
	}
	go s.execute(context.WithoutCancel(ctx), js)
	return nil
}

// RunSync triggers a job by name and waits for it.
func (s *Scheduler) RunSync(ctx context.Context, name string) error {
	js, ok := s.lookup(name)
	if !ok {
		return ErrUnknownJob
	}
	s.execute(ctx, js)
	return nil
}

// Get returns the current state of one job.
func (s *Scheduler) Get(name string) (ListItem, error) {
	js, ok := s.lookup(name)
	if !ok {
		return ListItem{}, ErrUnknownJob
	}
	return s.item(js), nil
}

// List returns a summary of all registered jobs sorted by name.
func (s *Scheduler) List() []ListItem {
	s.mu.RLock()
	items := make([]ListItem, 0, len(s.jobs))
	for _, js := range s.jobs {
		items = append(items, s.item(js))
	}
	s.mu.RUnlock()
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items
}

func (s *Scheduler) lookup(name string) (*jobState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	js, ok := s.jobs[name]
	return js, ok
}

func (s *Scheduler) item(js *jobState) ListItem {
	js.mu.Lock()
	defer js.mu.Unlock()
	it := ListItem{
		Name:        js.Name,
		Description: js.Description,
		Spec:        js.Spec,
		Status:      js.status,
		Message:     js.message,
		LastRunAt:   js.lastRunAt,
	}
	// Next is zero until the scheduler has started.
	if next := s.cron.Entry(js.entry).Next; !next.IsZero() {
		it.NextDate = &next
	}
	return it
}
