package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"gigalert/discovery-service/internal/logger"
	"gigalert/discovery-service/internal/metrics"
)

// Purger is the slice of store.Repository the reaper needs.
type Purger interface {
	PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// Reaper wraps robfig/cron and periodically purges listings past retention.
// It runs independently of the Runner.
type Reaper struct {
	cron      *cron.Cron
	repo      Purger
	retention time.Duration
	spec      string // cron spec, e.g. "@every 12h"
	log       logger.Logger
}

// NewReaper creates a Reaper that purges listings older than retention on spec.
func NewReaper(repo Purger, retention time.Duration, spec string, log logger.Logger) *Reaper {
	log = log.With(logger.String("component", "reaper"))
	cl := cronLogger{log: log}
	return &Reaper{
		cron:      cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		repo:      repo,
		retention: retention,
		spec:      spec,
		log:       log,
	}
}

// Start registers the purge job and starts the cron. Purges use ctx.
func (r *Reaper) Start(ctx context.Context) error {
	_, err := r.cron.AddFunc(r.spec, func() {
		_, _ = r.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	r.cron.Start()
	r.log.Info("Reaper started",
		logger.String("spec", r.spec),
		logger.Duration("retention", r.retention),
	)
	return nil
}

// Stop halts the schedule and waits for a purge in progress to finish.
func (r *Reaper) Stop() {
	<-r.cron.Stop().Done()
	r.log.Info("Reaper stopped")
}

// RunOnce purges listings older than the retention window. A failure is
// logged and returned; the next scheduled run tries again.
func (r *Reaper) RunOnce(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := r.repo.PurgeOlderThan(ctx, r.retention)
	if err != nil {
		r.log.Error("Purge failed", logger.Error(err))
		return 0, fmt.Errorf("purge older than %s: %w", r.retention, err)
	}
	metrics.RecordPurge(n)
	r.log.Info("Purge complete",
		logger.Int64("deleted", n),
		logger.Duration("duration", time.Since(start)),
	)
	return n, nil
}

// cronLogger routes robfig/cron's internal logging through Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(kvFields(keysAndValues), logger.Error(err))...)
}

func kvFields(kv []any) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields = append(fields, logger.Any(key, kv[i+1]))
	}
	return fields
}
