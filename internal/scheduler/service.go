// Package scheduler runs periodic maintenance on cron specs. Today that is the
// catalog refresh, which picks up edits made to the backing store by other
// processes or by hand.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dwizi/fixdesk/internal/dispatch"
	"github.com/dwizi/fixdesk/internal/heartbeat"
	"github.com/robfig/cron/v3"
)

const componentName = "scheduler"

type Refresher interface {
	Refresh(ctx context.Context) error
}

// Dispatcher runs refresh jobs on the shared worker pool. When nil the
// refresh runs on the cron goroutine.
type Dispatcher interface {
	Enqueue(job dispatch.Job) (dispatch.Job, error)
}

type Service struct {
	refresher  Refresher
	dispatcher Dispatcher
	spec       string
	logger     *slog.Logger
	reporter   heartbeat.Reporter
	runs       atomic.Int64
	failures   atomic.Int64
}

func New(refresher Refresher, spec string, logger *slog.Logger) *Service {
	return &Service{
		refresher: refresher,
		spec:      strings.TrimSpace(spec),
		logger:    logger.With("component", componentName),
	}
}

func (s *Service) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	s.reporter = reporter
}

func (s *Service) SetDispatcher(dispatcher Dispatcher) {
	s.dispatcher = dispatcher
}

// Runs reports how many refreshes completed and how many failed.
func (s *Service) Runs() (int64, int64) {
	return s.runs.Load(), s.failures.Load()
}

// Start schedules the refresh and blocks until ctx is done. A blank spec or a
// missing refresher disables the scheduler without failing the process.
func (s *Service) Start(ctx context.Context) error {
	if s.refresher == nil || s.spec == "" || strings.EqualFold(s.spec, "off") {
		s.report(func(r heartbeat.Reporter) { r.Disabled(componentName, "catalog refresh disabled") })
		<-ctx.Done()
		return nil
	}
	scheduler := cron.New(cron.WithChain(cron.Recover(cronLogger{s.logger})))
	if _, err := scheduler.AddFunc(s.spec, func() { s.tick(ctx) }); err != nil {
		s.report(func(r heartbeat.Reporter) { r.Degrade(componentName, "invalid refresh spec", err) })
		return fmt.Errorf("schedule catalog refresh %q: %w", s.spec, err)
	}
	s.report(func(r heartbeat.Reporter) { r.Starting(componentName, "started") })
	scheduler.Start()
	s.logger.Info("scheduler started", "spec", s.spec)
	s.report(func(r heartbeat.Reporter) { r.Beat(componentName, "waiting for next refresh") })

	<-ctx.Done()
	stopped := scheduler.Stop()
	select {
	case <-stopped.Done():
	case <-time.After(5 * time.Second):
		s.logger.Warn("scheduler stop timed out")
	}
	s.report(func(r heartbeat.Reporter) { r.Stopped(componentName, "stopped") })
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Service) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if s.dispatcher == nil {
		s.refresh(ctx)
		return
	}
	_, err := s.dispatcher.Enqueue(dispatch.Job{
		Kind: dispatch.JobKindMaintenance,
		Run: func(jobCtx context.Context) error {
			s.refresh(jobCtx)
			return nil
		},
	})
	if err != nil {
		if errors.Is(err, dispatch.ErrQueueFull) {
			s.logger.Warn("catalog refresh skipped, queue full")
		} else {
			s.logger.Error("enqueue catalog refresh failed", "error", err)
		}
		s.report(func(r heartbeat.Reporter) { r.Degrade(componentName, "refresh not queued", err) })
	}
}

func (s *Service) refresh(ctx context.Context) {
	started := time.Now()
	if err := s.refresher.Refresh(ctx); err != nil {
		s.failures.Add(1)
		s.logger.Error("catalog refresh failed", "error", err)
		s.report(func(r heartbeat.Reporter) { r.Degrade(componentName, "catalog refresh failed", err) })
		return
	}
	s.runs.Add(1)
	s.logger.Debug("catalog refreshed", "duration_ms", time.Since(started).Milliseconds())
	s.report(func(r heartbeat.Reporter) { r.Beat(componentName, "catalog refreshed") })
}

func (s *Service) report(fn func(heartbeat.Reporter)) {
	if s.reporter != nil {
		fn(s.reporter)
	}
}

// cronLogger adapts slog to cron.Logger for the recover wrapper.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
