package appframe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Worker is a long-running background task managed by a WorkerServer.
// Run blocks until the context is cancelled or the work completes.
type Worker interface {
	Name() string
	Run(ctx context.Context) error
}

// WorkerSetup is an optional interface for workers needing one-time
// setup before Run.
type WorkerSetup interface {
	Setup(ctx context.Context) error
}

// WorkerTeardown is an optional interface for workers needing cleanup
// after Run returns.
type WorkerTeardown interface {
	Teardown(ctx context.Context) error
}

// WorkerFunc adapts a function into a Worker.
type WorkerFunc struct {
	WorkerName string
	Fn         func(ctx context.Context) error
}

func (w WorkerFunc) Name() string { return w.WorkerName }

func (w WorkerFunc) Run(ctx context.Context) error { return w.Fn(ctx) }

// WorkerServer runs background workers and cron-scheduled jobs alongside
// a framework. Workers start after the framework reaches Running and are
// stopped by cancelling their shared context.
type WorkerServer struct {
	id      string
	logger  Logger
	subject Subject

	mu       sync.Mutex
	workers  []Worker
	cron     *cron.Cron
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  bool
	stopWait time.Duration
}

// WorkerServerOption configures a WorkerServer.
type WorkerServerOption func(*WorkerServer)

// WithWorkerLogger sets the server logger. Default is a NoopLogger.
func WithWorkerLogger(logger Logger) WorkerServerOption {
	return func(s *WorkerServer) {
		s.logger = logger
	}
}

// WithWorkerSubject sets a Subject to receive worker lifecycle events.
func WithWorkerSubject(subject Subject) WorkerServerOption {
	return func(s *WorkerServer) {
		s.subject = subject
	}
}

// WithWorkerStopWait sets how long Stop waits for workers to exit before
// giving up. Default is 30 seconds.
func WithWorkerStopWait(d time.Duration) WorkerServerOption {
	return func(s *WorkerServer) {
		s.stopWait = d
	}
}

// NewWorkerServer creates an idle worker server.
func NewWorkerServer(opts ...WorkerServerOption) *WorkerServer {
	s := &WorkerServer{
		id:       uuid.NewString(),
		logger:   NoopLogger{},
		cron:     cron.New(cron.WithSeconds()),
		stopWait: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the server's unique identifier.
func (s *WorkerServer) ID() string {
	return s.id
}

// Add registers a worker. Must be called before Start.
func (s *WorkerServer) Add(worker Worker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrWorkersAlreadyStarted
	}
	s.workers = append(s.workers, worker)
	return nil
}

// Schedule registers a cron job. The spec uses the six-field form with a
// leading seconds field. Jobs run until the server stops.
func (s *WorkerServer) Schedule(name, spec string, fn func()) (cron.EntryID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entryID, err := s.cron.AddFunc(spec, func() {
		s.logger.Debug("Running scheduled job", "job", name)
		fn()
	})
	if err != nil {
		return 0, fmt.Errorf("schedule %q: %w", name, err)
	}
	return entryID, nil
}

// Start launches all registered workers and the cron scheduler. Worker
// errors are logged; a failing worker does not stop its peers.
func (s *WorkerServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrWorkersAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.started = true

	for _, worker := range s.workers {
		s.wg.Add(1)
		go s.runWorker(runCtx, worker)
	}
	s.cron.Start()

	s.logger.Info("Worker server started", "serverID", s.id, "workers", len(s.workers))
	s.emit(runCtx, EventTypeWorkerStarted, map[string]any{"serverID": s.id, "workers": len(s.workers)})
	return nil
}

func (s *WorkerServer) runWorker(ctx context.Context, worker Worker) {
	defer s.wg.Done()

	if setup, ok := worker.(WorkerSetup); ok {
		if err := setup.Setup(ctx); err != nil {
			s.logger.Error("Worker setup failed", "worker", worker.Name(), "error", err)
			return
		}
	}
	if teardown, ok := worker.(WorkerTeardown); ok {
		defer func() {
			if err := teardown.Teardown(context.WithoutCancel(ctx)); err != nil {
				s.logger.Error("Worker teardown failed", "worker", worker.Name(), "error", err)
			}
		}()
	}

	s.logger.Debug("Worker running", "worker", worker.Name())
	if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("Worker exited with error", "worker", worker.Name(), "error", err)
		return
	}
	s.logger.Debug("Worker finished", "worker", worker.Name())
}

// Stop cancels the worker context, halts the scheduler, and waits up to
// the stop-wait window for workers to exit.
func (s *WorkerServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrWorkersNotStarted
	}
	s.cancel()
	cronCtx := s.cron.Stop()
	s.started = false
	s.mu.Unlock()

	<-cronCtx.Done()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.stopWait):
		return fmt.Errorf("%w after %s", ErrWorkersStopTimeout, s.stopWait)
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.Info("Worker server stopped", "serverID", s.id)
	s.emit(context.WithoutCancel(ctx), EventTypeWorkerStopped, map[string]any{"serverID": s.id})
	return nil
}

func (s *WorkerServer) emit(ctx context.Context, eventType string, data map[string]any) {
	if s.subject == nil {
		return
	}
	event := NewCloudEvent(eventType, "appframe/workers", data, nil)
	_ = s.subject.NotifyObservers(ctx, event)
}
