// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package hwheel

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/intuitivelabs/timestamp"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// DefaultTickDuration, DefaultTicksPerWheel are the constructor
// defaults used by the zero-argument form: a 100ms tick and a 512-tick
// wheel, with no pending-timeout limit.
const (
	DefaultTickDuration  = 100 * time.Millisecond
	DefaultTicksPerWheel = 512
)

type timerState int32

const (
	timerInit timerState = iota
	timerStarted
	timerShutdown
)

// Timer is the public facade: it owns the wheel, the tick duration,
// the pending-submission and cancellation queues, the start instant,
// the pending-count counter, and the dedicated worker goroutine's
// lifecycle.
//
// Ported from WTimer (wtimer.go), trimmed from its
// multi-wheel/multi-runqueue-worker design down to a single flat wheel
// and a single worker. The metrics/tracer/hooks/clock wiring shape
// follows zoobzio/pipz's connectors.
type Timer struct {
	tickDuration time.Duration
	wheel        *wheel

	maxPending   int64 // <= 0 disables the limit
	pendingCount int64 // atomic

	pendingQueue *mpscQueue
	cancelQueue  *mpscQueue

	state      int32 // atomic, timerState
	startCh    chan struct{}
	shutdownCh chan struct{}

	// unprocessedCh carries the worker's final collection of
	// still-pending records exactly once, to whichever goroutine is
	// blocked in Stop.
	unprocessedCh chan map[*Timeout]struct{}

	// runningTask is non-zero only while the worker goroutine is
	// synchronously inside a task callback. A task that calls Stop on
	// its own Timer would otherwise deadlock waiting for the worker
	// goroutine (itself) to exit, so Stop checks this flag instead of
	// needing to identify the calling goroutine directly.
	runningTask int32

	tick         uint64 // atomic; current tick, worker-owned write, diagnostic reads
	startInstant int64  // atomic; UnixNano of the published start instant, 0 until set

	// startedAt and lastWallClock are diagnostic-only, ported from
	// WTimer's timestamp.TS bookkeeping (wtimer.go's refTS/lastTickT);
	// lastWallClock is worker-goroutine-private (see checkWallClock),
	// startedAt is written once in publishStart.
	startedAt     timestamp.TS
	lastWallClock timestamp.TS
	badTime       uint64 // atomic

	clock   Clock
	metrics *metricz.Registry
	tracer  *tracez.Tracer
	hooks   *hookz.Hooks[Event]

	wg sync.WaitGroup
}

// Option configures a Timer at construction time.
type Option func(*Timer)

// WithClock overrides the default real-wall-clock Clock, the way
// zoobzio/pipz's connectors accept a clockz.Clock for deterministic
// tests. It has no effect once the Timer has been started.
func WithClock(c Clock) Option {
	return func(t *Timer) { t.clock = c }
}

// NewTimer constructs a Timer. tickDuration must be positive and
// round up (ceiling, to the nearest millisecond) to no more than
// math.MaxInt32 milliseconds. ticksPerWheel is normalised up to the
// smallest power of two >= itself and must be in [1, MaxTicksPerWheel].
// maxPendingTimeouts <= 0 means no limit on outstanding timeouts.
func NewTimer(tickDuration time.Duration, ticksPerWheel int, maxPendingTimeouts int64, opts ...Option) (*Timer, error) {
	if tickDuration <= 0 {
		return nil, ErrTickDurationTooSmall
	}
	ms := ceilToMillis(tickDuration)
	if ms > math.MaxInt32 {
		return nil, ErrTickDurationTooBig
	}
	w, err := newWheel(ticksPerWheel)
	if err != nil {
		return nil, err
	}
	// tickDuration * wheelLength must not overflow an int64. Checked
	// by dividing back rather than multiplying, so the check itself
	// never overflows.
	if int64(tickDuration) != 0 && int64(w.len()) > math.MaxInt64/int64(tickDuration) {
		return nil, ErrWheelOverflow
	}

	t := &Timer{
		tickDuration:  tickDuration,
		wheel:         w,
		maxPending:    maxPendingTimeouts,
		pendingQueue:  newMPSCQueue(pqLink),
		cancelQueue:   newMPSCQueue(cqLink),
		state:         int32(timerInit),
		startCh:       make(chan struct{}),
		shutdownCh:    make(chan struct{}),
		unprocessedCh: make(chan map[*Timeout]struct{}, 1),
		clock:         RealClock,
		metrics:       newMetrics(),
		tracer:        tracez.New(),
		hooks:         hookz.New[Event](),
	}
	for _, opt := range opts {
		opt(t)
	}
	trackInstance(t)
	return t, nil
}

// DefaultTimer constructs a Timer with the package defaults: a 100ms
// tick, a 512-tick wheel, and no pending-timeout limit.
func DefaultTimer(opts ...Option) (*Timer, error) {
	return NewTimer(DefaultTickDuration, DefaultTicksPerWheel, 0, opts...)
}

// Metrics returns the metrics registry for this Timer.
func (t *Timer) Metrics() *metricz.Registry { return t.metrics }

// Tracer returns the tracer for this Timer.
func (t *Timer) Tracer() *tracez.Tracer { return t.tracer }

func (t *Timer) loadState() timerState { return timerState(atomic.LoadInt32(&t.state)) }

// Start launches the worker goroutine if it has not already been
// launched. It is idempotent: calling it again on an already-started
// Timer is a no-op. On a Timer that has been stopped it returns
// ErrStartAfterStop. It blocks until the worker
// has published its start instant, so that Schedule calls made
// immediately after Start returns always see a consistent clock base.
func (t *Timer) Start() error {
	if t.loadState() == timerShutdown {
		return ErrStartAfterStop
	}
	if atomic.CompareAndSwapInt32(&t.state, int32(timerInit), int32(timerStarted)) {
		t.wg.Add(1)
		go t.runWorker()
	}
	<-t.startCh
	return nil
}

// decPending decrements the live pending-timeout counter by one and
// updates the pending gauge. Called from exactly one of three
// mutually exclusive terminal paths per record: the cancellation
// queue drain, a successful Bucket.expire firing, or the shutdown
// bucket/queue collection (see bucket.go, worker.go).
func (t *Timer) decPending() {
	n := atomic.AddInt64(&t.pendingCount, -1)
	t.metrics.Gauge(PendingGauge).Set(float64(n))
}

// Pending returns the current number of outstanding Timeout records:
// those not yet fired or collected at shutdown. A cancelled record is
// still counted until the worker drains the cancellation queue on its
// next tick.
func (t *Timer) Pending() int64 {
	return atomic.LoadInt64(&t.pendingCount)
}

// Schedule submits task to run once, after delay. It starts the
// worker lazily on first use if the Timer has not been started yet.
// It returns ErrNilTask if task is nil, ErrAlreadyShutdown
// if the Timer has been stopped, and ErrPendingLimitExceeded if doing
// so would exceed the configured pending-timeout limit.
func (t *Timer) Schedule(task TaskFunc, delay time.Duration) (*Timeout, error) {
	if task == nil {
		return nil, ErrNilTask
	}
	if t.loadState() == timerShutdown {
		return nil, ErrAlreadyShutdown
	}
	if err := t.Start(); err != nil {
		return nil, err
	}

	if t.maxPending > 0 {
		for {
			cur := atomic.LoadInt64(&t.pendingCount)
			if cur >= t.maxPending {
				t.metrics.Counter(RejectedTotal).Inc()
				t.emit(EventReject, Event{Timestamp: time.Now(), Err: ErrPendingLimitExceeded})
				return nil, ErrPendingLimitExceeded
			}
			if atomic.CompareAndSwapInt64(&t.pendingCount, cur, cur+1) {
				break
			}
		}
	} else {
		atomic.AddInt64(&t.pendingCount, 1)
	}
	t.metrics.Gauge(PendingGauge).Set(float64(atomic.LoadInt64(&t.pendingCount)))
	t.metrics.Counter(ScheduledTotal).Inc()

	if delay < 0 {
		delay = 0
	}
	elapsed := t.clock.Now().Sub(t.startTime())
	deadlineMs := uint64(ceilToMillis(elapsed + delay))
	calculated := Ticks(ceilDivUint64(deadlineMs, uint64(ceilToMillis(t.tickDuration))))

	rec := &Timeout{
		task:     task,
		Timer:    t,
		deadline: calculated,
	}
	t.pendingQueue.tryEnqueue(rec)
	return rec, nil
}

// startTime returns the wall-clock instant the worker published as
// tick zero. Schedule blocks (via Start) until this is set, so it is
// always valid by the time Schedule reads it.
func (t *Timer) startTime() time.Time {
	ns := atomic.LoadInt64(&t.startInstant)
	return time.Unix(0, ns)
}

// publishStart records the worker's start instant exactly once,
// bumping a true-zero UnixNano reading to 1 so that a loaded value of
// 0 unambiguously means "not yet published". Every other goroutine
// only ever reads startInstant after Start has unblocked, so this
// single write needs no further synchronization.
func (t *Timer) publishStart(now time.Time) {
	ns := now.UnixNano()
	if ns == 0 {
		ns = 1
	}
	atomic.StoreInt64(&t.startInstant, ns)
	t.startedAt = timestamp.Now()
	t.lastWallClock = t.startedAt
	close(t.startCh)
}

// stopJoinTimeout bounds how long Stop waits for the worker goroutine
// to join before giving up and returning a best-effort result. The
// worker keeps draining in the background regardless; a caller racing
// a slow task is never kept waiting past this.
const stopJoinTimeout = 100 * time.Millisecond

// Stop shuts the Timer down: it signals the worker and waits up to
// stopJoinTimeout for it to join after draining every bucket and both
// queues, returning the set of Timeout records that were still
// pending (neither fired nor cancelled) at that point. Stop is
// idempotent: calling it again on an already-shutdown Timer returns an
// empty set and no error, and calling it on a never-started Timer only
// marks it shut down and returns an empty set, the same as
// Netty/DotNetty's own stop(), rather than
// erroring on the repeated call. It is an error to call Stop from the
// worker goroutine itself: a task that stops its own Timer would
// deadlock waiting for its own goroutine to exit.
func (t *Timer) Stop() (map[*Timeout]struct{}, error) {
	if atomic.LoadInt32(&t.runningTask) != 0 {
		return nil, ErrStopFromWorker
	}
	if !atomic.CompareAndSwapInt32(&t.state, int32(timerStarted), int32(timerShutdown)) {
		// Never started, or already shut down by a previous call:
		// nothing left to drain either way.
		atomic.CompareAndSwapInt32(&t.state, int32(timerInit), int32(timerShutdown))
		return map[*Timeout]struct{}{}, nil
	}
	close(t.shutdownCh)

	joined := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(joined)
	}()

	select {
	case <-joined:
		if t.tracer != nil {
			t.tracer.Close()
		}
		if t.hooks != nil {
			t.hooks.Close()
		}
	case <-t.clock.After(stopJoinTimeout):
		// The worker may still be stuck in a slow task: give up
		// waiting and return whatever the unprocessed set already
		// holds, without closing the tracer/hooks out from under it.
	}

	select {
	case unprocessed := <-t.unprocessedCh:
		return unprocessed, nil
	default:
		return map[*Timeout]struct{}{}, nil
	}
}
