package scheduler_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigalert/discovery-service/internal/logger"
	"gigalert/discovery-service/internal/model"
	"gigalert/discovery-service/internal/scheduler"
)

// fakeCycler counts cycles and tracks how many run at once.
type fakeCycler struct {
	calls     atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
	sawCancel atomic.Bool

	started chan struct{} // optional; signalled when a cycle begins
	block   chan struct{} // optional; cycles wait for it to close
}

func (c *fakeCycler) RunCycle(ctx context.Context, job model.Job) model.CycleStats {
	n := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		m := c.maxActive.Load()
		if n <= m || c.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	c.calls.Add(1)

	if c.started != nil {
		select {
		case c.started <- struct{}{}:
		default:
		}
	}
	if c.block != nil {
		<-c.block
	}
	if ctx.Err() != nil {
		c.sawCancel.Store(true)
	}
	return model.CycleStats{CycleID: "c", Pages: job.Pages, Matched: 2, Notified: 1}
}

func validJob() model.Job {
	return model.Job{Pages: 2, Keywords: []string{"logo"}, Token: "t", ChatID: "42", OwnerID: "u1"}
}

func newRunner(c scheduler.Cycler, minSleep, maxSleep time.Duration) *scheduler.Runner {
	return scheduler.NewRunner(context.Background(), c, minSleep, maxSleep, logger.NewNop())
}

func TestRunner_StartRejectsIncompleteJob(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*model.Job)
		want   error
	}{
		{"no pages", func(j *model.Job) { j.Pages = 0 }, scheduler.ErrNoPages},
		{"no token", func(j *model.Job) { j.Token = "" }, scheduler.ErrMissingToken},
		{"no chat", func(j *model.Job) { j.ChatID = "" }, scheduler.ErrChannelNotLinked},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := &fakeCycler{}
			r := newRunner(c, time.Millisecond, time.Millisecond)
			job := validJob()
			tc.mutate(&job)

			err := r.Start(job)
			require.ErrorIs(t, err, tc.want)
			assert.Equal(t, scheduler.StateIdle, r.Status().State)
			assert.Zero(t, c.calls.Load())
		})
	}
}

func TestRunner_StartTwiceRunsOneLoop(t *testing.T) {
	c := &fakeCycler{}
	r := newRunner(c, time.Millisecond, 5*time.Millisecond)

	require.NoError(t, r.Start(validJob()))
	require.NoError(t, r.Start(validJob()))
	assert.True(t, r.Running())

	require.Eventually(t, func() bool { return c.calls.Load() >= 3 }, 2*time.Second, time.Millisecond)
	r.Stop()

	assert.Equal(t, int32(1), c.maxActive.Load())
	assert.Equal(t, scheduler.StateIdle, r.Status().State)
}

func TestRunner_StopTwiceIsNoOp(t *testing.T) {
	r := newRunner(&fakeCycler{}, time.Millisecond, time.Millisecond)

	r.Stop() // idle
	require.NoError(t, r.Start(validJob()))
	r.Stop()
	r.Stop()

	assert.Equal(t, scheduler.StateIdle, r.Status().State)
}

func TestRunner_StopWaitsForCycleInFlight(t *testing.T) {
	c := &fakeCycler{started: make(chan struct{}, 1), block: make(chan struct{})}
	r := newRunner(c, time.Hour, time.Hour)

	require.NoError(t, r.Start(validJob()))
	<-c.started

	stopped := make(chan struct{})
	go func() {
		r.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a cycle was still running")
	case <-time.After(50 * time.Millisecond):
	}
	// Status stays answerable while Stop waits.
	assert.Equal(t, scheduler.StateRunning, r.Status().State)

	close(c.block)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the cycle finished")
	}

	assert.False(t, c.sawCancel.Load(), "cycle context must not be cancelled by Stop")
	assert.Equal(t, int32(1), c.calls.Load())
	assert.Equal(t, scheduler.StateIdle, r.Status().State)
}

func TestRunner_StopInterruptsSleep(t *testing.T) {
	c := &fakeCycler{}
	r := newRunner(c, time.Hour, time.Hour)

	require.NoError(t, r.Start(validJob()))
	require.Eventually(t, func() bool { return c.calls.Load() == 1 }, time.Second, time.Millisecond)

	start := time.Now()
	r.Stop()
	assert.Less(t, time.Since(start), time.Second)
}

func TestRunner_StatusReportsLastCycle(t *testing.T) {
	c := &fakeCycler{}
	r := newRunner(c, time.Hour, time.Hour)

	assert.Equal(t, scheduler.Status{State: scheduler.StateIdle}, r.Status())

	require.NoError(t, r.Start(validJob()))
	require.Eventually(t, func() bool { return r.Status().Cycles == 1 }, time.Second, time.Millisecond)

	st := r.Status()
	assert.Equal(t, scheduler.StateRunning, st.State)
	assert.Equal(t, "u1", st.OwnerID)
	assert.Equal(t, 2, st.LastMatched)
	assert.Equal(t, 1, st.LastNotified)
	assert.NotNil(t, st.StartedAt)
	assert.NotNil(t, st.LastRunAt)
	assert.NotNil(t, st.LastOKAt)

	r.Stop()
	st = r.Status()
	assert.Equal(t, scheduler.StateIdle, st.State)
	assert.Equal(t, 1, st.Cycles, "summary survives stop")
}

func TestRunner_RestartAfterStop(t *testing.T) {
	c := &fakeCycler{}
	r := newRunner(c, time.Hour, time.Hour)

	require.NoError(t, r.Start(validJob()))
	require.Eventually(t, func() bool { return c.calls.Load() == 1 }, time.Second, time.Millisecond)
	r.Stop()

	job := validJob()
	job.OwnerID = "u2"
	require.NoError(t, r.Start(job))
	require.Eventually(t, func() bool { return c.calls.Load() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, "u2", r.Status().OwnerID)
	r.Stop()
}

func TestRunner_BaseContextCancelReturnsToIdle(t *testing.T) {
	base, cancel := context.WithCancel(context.Background())
	c := &fakeCycler{}
	r := scheduler.NewRunner(base, c, time.Hour, time.Hour, logger.NewNop())

	require.NoError(t, r.Start(validJob()))
	require.Eventually(t, func() bool { return c.calls.Load() == 1 }, time.Second, time.Millisecond)

	cancel()
	require.Eventually(t, func() bool { return !r.Running() }, time.Second, time.Millisecond)
	assert.Equal(t, 1, r.Status().Cycles)

	// A shut-down runner refuses new loops instead of reporting a phantom start.
	require.ErrorIs(t, r.Start(validJob()), context.Canceled)
	assert.Equal(t, scheduler.StateIdle, r.Status().State)

	r.Stop()
	assert.Equal(t, int32(1), c.calls.Load())
}
