package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"thirdcoast.systems/fetchd/internal/db"
)

const DefaultPollInterval = 5 * time.Second

// finishTimeout bounds the status write after a job returns, even on shutdown.
const finishTimeout = 10 * time.Second

// Worker claims and runs jobs for its registered names.
type Worker struct {
	// DSN, when set, is used for LISTEN connections. Without it the worker only polls.
	DSN          string
	PollInterval time.Duration
	Logger       *slog.Logger

	q        Queries
	handlers map[string]HandlerFunc

	mu      sync.Mutex
	running map[uuid.UUID]context.CancelCauseFunc
}

func NewWorker(q Queries, dsn string, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		DSN:          dsn,
		PollInterval: DefaultPollInterval,
		Logger:       logger,
		q:            q,
		handlers:     map[string]HandlerFunc{},
		running:      map[uuid.UUID]context.CancelCauseFunc{},
	}
}

func (w *Worker) Register(name string, h HandlerFunc) {
	w.handlers[name] = h
}

func (w *Worker) RegisterAll(handlers map[string]HandlerFunc) {
	for name, h := range handlers {
		w.Register(name, h)
	}
}

// Names lists the registered job names in sorted order.
func (w *Worker) Names() []string {
	return slices.Sorted(maps.Keys(w.handlers))
}

func (w *Worker) pollInterval() time.Duration {
	if w.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return w.PollInterval
}

// Run fails jobs left running by a previous process, then runs concurrency
// claim loops until ctx ends. Running jobs see ctx cancellation.
func (w *Worker) Run(ctx context.Context, concurrency int) error {
	names := w.Names()
	if len(names) == 0 {
		return errors.New("queue: no handlers registered")
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	if n, err := w.q.RecoverStuckQueueJobs(ctx, names); err != nil {
		// Non-fatal - continue startup
		w.Logger.Error("failed to recover stuck jobs", "error", err)
	} else if n > 0 {
		w.Logger.Warn("failed jobs left running by a previous worker", "count", n)
	}

	wake := make(chan struct{}, 1)
	revoked := make(chan struct{}, 1)
	if w.DSN != "" {
		go listenAndSignal(ctx, w.DSN, channelJobs, wake, w.Logger)
		go listenAndSignal(ctx, w.DSN, channelRevocations, revoked, w.Logger)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.watchRevocations(ctx, revoked)
	}()

	w.Logger.Info("queue workers started", "workers", concurrency, "jobs", names)
	for range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx, names, wake)
		}()
	}

	wg.Wait()
	return nil
}

func (w *Worker) loop(ctx context.Context, names []string, wake <-chan struct{}) {
	for {
		if ctx.Err() != nil {
			return
		}

		// Drain as many jobs as we can
		for ctx.Err() == nil {
			row, err := w.q.DequeueQueueJob(ctx, names)
			if errors.Is(err, pgx.ErrNoRows) {
				break
			}
			if err != nil {
				if ctx.Err() == nil {
					w.Logger.Error("failed to dequeue job", "error", err)
					sleepCtx(ctx, listenRetryDelay)
				}
				break
			}
			w.runJob(ctx, jobFromRow(row))
		}

		select {
		case <-ctx.Done():
			return
		case <-wake:
			// new job notification
		case <-time.After(w.pollInterval()):
			// periodic poll
		}
	}
}

func (w *Worker) runJob(ctx context.Context, job *Job) {
	log := w.Logger.With("job_id", job.ID, "job", job.Name)

	jobCtx, cancel := context.WithCancelCause(ctx)
	w.mu.Lock()
	w.running[job.ID] = cancel
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		delete(w.running, job.ID)
		w.mu.Unlock()
		cancel(nil)
	}()

	started := time.Now()
	err := w.call(jobCtx, job)

	status := db.QueueJobStatusSucceeded
	var lastError *string
	var rev *RevokedError
	switch {
	case errors.As(context.Cause(jobCtx), &rev):
		status = db.QueueJobStatusRevoked
		log.Info("job terminated", "signal", rev.Sig, "duration", time.Since(started))
	case err != nil && ctx.Err() != nil:
		log.Warn("job interrupted by shutdown, requeueing", "error", err, "duration", time.Since(started))
		w.requeue(ctx, job, log)
		return
	case err != nil:
		status = db.QueueJobStatusFailed
		msg := err.Error()
		lastError = &msg
		log.Error("job failed", "error", err, "duration", time.Since(started))
	default:
		log.Info("job succeeded", "duration", time.Since(started))
	}

	finishCtx, done := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer done()
	if err := w.q.FinishQueueJob(finishCtx, &db.FinishQueueJobParams{
		ID:        db.UUID(job.ID),
		Status:    status,
		LastError: lastError,
	}); err != nil {
		log.Error("failed to record job result", "error", err)
	}
}

func (w *Worker) requeue(ctx context.Context, job *Job, log *slog.Logger) {
	requeueCtx, done := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer done()
	if err := w.q.RequeueQueueJob(requeueCtx, db.UUID(job.ID)); err != nil {
		log.Error("failed to requeue job", "error", err)
	}
}

func (w *Worker) call(ctx context.Context, job *Job) (err error) {
	h, ok := w.handlers[job.Name]
	if !ok {
		return fmt.Errorf("queue: no handler for %q", job.Name)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("queue: handler panic: %v", r)
		}
	}()
	return h(ctx, job)
}

// watchRevocations cancels running jobs revoked with terminate.
func (w *Worker) watchRevocations(ctx context.Context, signal <-chan struct{}) {
	for {
		w.terminateRevoked(ctx)

		select {
		case <-ctx.Done():
			return
		case <-signal:
		case <-time.After(w.pollInterval()):
		}
	}
}

func (w *Worker) terminateRevoked(ctx context.Context) {
	rows, err := w.q.ListRevokedRunningJobs(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.Logger.Error("failed to list revoked jobs", "error", err)
		}
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, r := range rows {
		if !r.Terminate {
			continue
		}
		id := db.FromUUID(r.ID)
		cancel, ok := w.running[id]
		if !ok {
			continue
		}
		sig := ""
		if r.Signal != nil {
			sig = *r.Signal
		}
		w.Logger.Info("terminating revoked job", "job_id", id, "signal", sig)
		cancel(&RevokedError{JobID: id, Sig: ParseSignal(sig)})
	}
}
