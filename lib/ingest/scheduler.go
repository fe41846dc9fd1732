package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/fiffu/linewatch/config"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const DefaultPollInterval = 2 * time.Minute

type CycleRunner interface {
	RunCycle(ctx context.Context) (*CycleReport, error)
}

// Scheduler runs a cycle at startup and then every interval. At most one
// cycle is in flight; ticks that land on a running cycle are skipped.
type Scheduler struct {
	log    *zap.Logger
	runner CycleRunner

	interval     time.Duration
	cycleTimeout time.Duration

	cron *cron.Cron
	job  cron.Job

	mu       sync.Mutex
	stopped  bool
	inflight sync.WaitGroup
}

func NewScheduler(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, runner CycleRunner) *Scheduler {
	s := newScheduler(log, runner, DefaultPollInterval, cfg.CycleTimeout())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Sugar().Info("Trying to stop scheduler")
			return s.Stop(ctx)
		},
	})

	return s
}

func newScheduler(log *zap.Logger, runner CycleRunner, interval, cycleTimeout time.Duration) *Scheduler {
	logger := cronLogger{log.Sugar()}
	s := &Scheduler{
		log:          log,
		runner:       runner,
		interval:     interval,
		cycleTimeout: cycleTimeout,
		cron:         cron.New(cron.WithLogger(logger)),
	}
	s.job = cron.NewChain(cron.SkipIfStillRunning(logger)).Then(cron.FuncJob(s.runCycle))
	s.cron.Schedule(cron.Every(interval), s.job)
	return s
}

func (s *Scheduler) Start() {
	s.cron.Start()
	go s.Trigger()
	s.log.Sugar().Infow("Scheduler started", "interval", s.interval.String())
}

// Trigger runs a cycle now unless one is already running.
func (s *Scheduler) Trigger() {
	s.job.Run()
}

// Stop suppresses further cycles and waits for the in-flight one, if any,
// until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.cron.Stop()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Sugar().Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runCycle() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	// Stopping the scheduler does not cancel a running cycle.
	ctx := context.Background()
	if s.cycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cycleTimeout)
		defer cancel()
	}

	if _, err := s.runner.RunCycle(ctx); err != nil {
		s.log.Sugar().Warnw("Cycle failed, retrying at next interval", "err", err)
	}
}

type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorw("cron: "+msg, append(keysAndValues, "err", err)...)
}
