// Package dispatch runs inbound chat events on a bounded pool of workers so the
// gateway read loop never waits on triage work.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var ErrQueueFull = errors.New("dispatch queue is full")

type JobKind string

const (
	JobKindMessage     JobKind = "message"
	JobKindCommand     JobKind = "command"
	JobKindInteraction JobKind = "interaction"
	JobKindMaintenance JobKind = "maintenance"
)

// Interactive reports whether the job answers a user interaction and runs on
// the dedicated interactive lane.
func (k JobKind) Interactive() bool {
	return k == JobKindCommand || k == JobKindInteraction
}

type Job struct {
	ID        string
	Kind      JobKind
	ChannelID string
	Run       func(ctx context.Context) error
	CreatedAt time.Time
}

type Stats struct {
	Queued    int
	Completed int64
	Failed    int64
}

// interactiveWorkers serve command and button jobs only, so a backlog of slow
// message jobs cannot hold a click past its session deadline or its
// interaction token lifetime.
const interactiveWorkers = 2

type Engine struct {
	maxConcurrency int
	jobTimeout     time.Duration
	jobs           chan Job
	interactive    chan Job
	logger         *slog.Logger
	startOnce      sync.Once
	completed      atomic.Int64
	failed         atomic.Int64
}

// New creates an engine with maxConcurrency workers. jobTimeout bounds a single
// job; zero means no bound beyond the engine context.
func New(maxConcurrency int, jobTimeout time.Duration, logger *slog.Logger) *Engine {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		maxConcurrency: maxConcurrency,
		jobTimeout:     jobTimeout,
		jobs:           make(chan Job, maxConcurrency*50),
		interactive:    make(chan Job, interactiveWorkers*50),
		logger:         logger.With("component", "dispatch"),
	}
}

// Start runs the workers until ctx is cancelled and waits for in-flight jobs.
func (e *Engine) Start(ctx context.Context) error {
	var workers sync.WaitGroup
	e.startOnce.Do(func() {
		for index := 0; index < e.maxConcurrency; index++ {
			workers.Add(1)
			go func(workerID int) {
				defer workers.Done()
				e.worker(ctx, workerID, e.jobs)
			}(index + 1)
		}
		for index := 0; index < interactiveWorkers; index++ {
			workers.Add(1)
			go func(workerID int) {
				defer workers.Done()
				e.worker(ctx, workerID, e.interactive)
			}(e.maxConcurrency + index + 1)
		}
	})

	<-ctx.Done()
	workers.Wait()
	return nil
}

func (e *Engine) Enqueue(job Job) (Job, error) {
	if job.Run == nil {
		return Job{}, fmt.Errorf("dispatch job has no run function")
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Kind == "" {
		job.Kind = JobKindMessage
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	queue := e.jobs
	if job.Kind.Interactive() {
		queue = e.interactive
	}
	select {
	case queue <- job:
		e.logger.Debug("job queued", "job_id", job.ID, "kind", job.Kind, "channel_id", job.ChannelID)
		return job, nil
	default:
		return Job{}, ErrQueueFull
	}
}

func (e *Engine) Stats() Stats {
	return Stats{
		Queued:    len(e.jobs) + len(e.interactive),
		Completed: e.completed.Load(),
		Failed:    e.failed.Load(),
	}
}

func (e *Engine) worker(ctx context.Context, workerID int, queue <-chan Job) {
	e.logger.Info("worker started", "worker_id", workerID)
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("worker stopped", "worker_id", workerID)
			return
		case job := <-queue:
			e.process(ctx, workerID, job)
		}
	}
}

func (e *Engine) process(ctx context.Context, workerID int, job Job) {
	jobCtx := ctx
	if e.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, e.jobTimeout)
		defer cancel()
	}
	started := time.Now()
	err := e.run(jobCtx, job)
	if err != nil {
		e.failed.Add(1)
		e.logger.Error("job failed",
			"worker_id", workerID,
			"job_id", job.ID,
			"kind", job.Kind,
			"channel_id", job.ChannelID,
			"error", err,
		)
		return
	}
	e.completed.Add(1)
	e.logger.Debug("job completed", "worker_id", workerID, "job_id", job.ID, "kind", job.Kind, "duration_ms", time.Since(started).Milliseconds())
}

func (e *Engine) run(ctx context.Context, job Job) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("panic: %v", recovered)
			e.logger.Error("job panicked", "job_id", job.ID, "stack", string(debug.Stack()))
		}
	}()
	return job.Run(ctx)
}
