package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"gigalert/discovery-service/internal/logger"
	"gigalert/discovery-service/internal/metrics"
	"gigalert/discovery-service/internal/model"
)

// Start rejections. No loop is spawned when Start returns one of these.
var (
	ErrChannelNotLinked = errors.New("channel not linked")
	ErrMissingToken     = errors.New("channel token missing")
	ErrNoPages          = errors.New("page count must be positive")
)

// Cycler runs one full discovery cycle. *scraper.Worker satisfies it.
type Cycler interface {
	RunCycle(ctx context.Context, job model.Job) model.CycleStats
}

// Status is a snapshot of the Runner for the control surface.
type Status struct {
	State        State      `json:"state"`
	OwnerID      string     `json:"ownerId,omitempty"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	Cycles       int        `json:"cycles"`
	LastCycleID  string     `json:"lastCycleId,omitempty"`
	LastRunAt    *time.Time `json:"lastRunAt,omitempty"`
	LastOKAt     *time.Time `json:"lastOkAt,omitempty"` // last cycle without store or send errors
	LastMatched  int        `json:"lastMatched"`
	LastNotified int        `json:"lastNotified"`
}

// Runner owns the single discovery loop of the process.
// Start, Stop and Status are safe for concurrent use.
type Runner struct {
	baseCtx  context.Context
	cycler   Cycler
	minSleep time.Duration
	maxSleep time.Duration
	log      logger.Logger

	// lifecycle serialises Start and Stop. It is held while Stop waits for
	// the loop, so a Start arriving mid-stop only runs once the loop is gone.
	lifecycle sync.Mutex

	mu     sync.RWMutex // guards the fields below
	status Status
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRunner builds an idle Runner. Loops started later derive their context
// from baseCtx; the random sleep between cycles is drawn from [minSleep, maxSleep].
func NewRunner(baseCtx context.Context, cycler Cycler, minSleep, maxSleep time.Duration, log logger.Logger) *Runner {
	if maxSleep < minSleep {
		maxSleep = minSleep
	}
	return &Runner{
		baseCtx:  baseCtx,
		cycler:   cycler,
		minSleep: minSleep,
		maxSleep: maxSleep,
		log:      log.With(logger.String("component", "runner")),
		status:   Status{State: StateIdle},
	}
}

// Start validates job and spawns the discovery loop. It is a no-op when a
// loop is already running.
func (r *Runner) Start(job model.Job) error {
	if err := validateJob(job); err != nil {
		return err
	}

	if err := r.baseCtx.Err(); err != nil {
		return fmt.Errorf("runner shut down: %w", err)
	}

	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	r.mu.Lock()
	if !IsTransitionAllowed(r.status.State, StateRunning) {
		owner := r.status.OwnerID
		r.mu.Unlock()
		r.log.Info("Discovery already running, start ignored",
			logger.String("owner_id", owner),
			logger.String("requested_owner_id", job.OwnerID),
		)
		return nil
	}

	ctx, cancel := context.WithCancel(r.baseCtx)
	done := make(chan struct{})
	startedAt := time.Now().UTC()
	r.cancel, r.done = cancel, done
	r.status = Status{State: StateRunning, OwnerID: job.OwnerID, StartedAt: &startedAt}
	r.mu.Unlock()

	metrics.SetWorkerRunning(true)
	r.log.Info("Discovery started",
		logger.String("owner_id", job.OwnerID),
		logger.Int("pages", job.Pages),
		logger.Strings("keywords", job.Keywords),
	)

	go r.loop(ctx, job, done)
	return nil
}

// Stop signals the loop and blocks until it has exited. A cycle in flight
// runs to completion first. Stop on an idle Runner does nothing.
func (r *Runner) Stop() {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	r.mu.Lock()
	if r.status.State != StateRunning {
		r.mu.Unlock()
		return
	}
	// Taking done hands the exit bookkeeping to Stop instead of the loop.
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	r.log.Info("Discovery stop requested, waiting for loop to exit")
	cancel()
	<-done

	r.mu.Lock()
	r.status.State = StateIdle
	r.mu.Unlock()

	metrics.SetWorkerRunning(false)
	r.log.Info("Discovery stopped")
}

// Status returns the current state and the last cycle summary.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Running reports whether a loop is active.
func (r *Runner) Running() bool {
	return r.Status().State == StateRunning
}

func (r *Runner) loop(ctx context.Context, job model.Job, done chan struct{}) {
	defer r.exited(done)

	// Cycles never observe the stop signal; it is checked between them.
	cycleCtx := context.WithoutCancel(ctx)
	for {
		stats := r.cycler.RunCycle(cycleCtx, job)
		r.recordCycle(stats)

		if ctx.Err() != nil {
			return
		}

		pause := r.nextSleep()
		r.log.Debug("Sleeping until next cycle", logger.Duration("sleep", pause))
		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// exited releases Stop waiters on done. A loop that ends because baseCtx was
// cancelled, rather than through Stop, also returns the Runner to IDLE.
func (r *Runner) exited(done chan struct{}) {
	defer close(done)

	r.mu.Lock()
	current := r.done == done && r.status.State == StateRunning
	cancel := r.cancel
	if current {
		r.status.State = StateIdle
		r.cancel, r.done = nil, nil
	}
	r.mu.Unlock()

	if !current {
		return
	}
	cancel()
	metrics.SetWorkerRunning(false)
	r.log.Info("Discovery loop exited", logger.Error(r.baseCtx.Err()))
}

func (r *Runner) recordCycle(stats model.CycleStats) {
	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Cycles++
	r.status.LastCycleID = stats.CycleID
	r.status.LastRunAt = &now
	r.status.LastMatched = stats.Matched
	r.status.LastNotified = stats.Notified
	if stats.StoreErrors == 0 && stats.NotifyFails == 0 {
		r.status.LastOKAt = &now
	}
}

func (r *Runner) nextSleep() time.Duration {
	spread := r.maxSleep - r.minSleep
	if spread <= 0 {
		return r.minSleep
	}
	return r.minSleep + rand.N(spread+1)
}

func validateJob(job model.Job) error {
	switch {
	case job.Pages <= 0:
		return ErrNoPages
	case job.Token == "":
		return ErrMissingToken
	case job.ChatID == "":
		return ErrChannelNotLinked
	}
	return nil
}
