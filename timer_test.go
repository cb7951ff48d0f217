// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package hwheel

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

// fakeClock is satisfied by clockz.NewFakeClock()'s return value; the
// concrete type is never named, the same way zoobzio/pipz's own
// tests only ever write "clock := clockz.NewFakeClock()".
type fakeClock interface {
	Clock
	Advance(d time.Duration)
	BlockUntilReady()
}

func newTestTimer(t *testing.T, clock fakeClock, tick time.Duration, ticksPerWheel int, maxPending int64) *Timer {
	t.Helper()
	tm, err := NewTimer(tick, ticksPerWheel, maxPending, WithClock(clock))
	if err != nil {
		t.Fatalf("seed %d: NewTimer failed: %v\n", seed, err)
	}
	t.Cleanup(func() {
		if _, err := tm.Stop(); err != nil {
			t.Errorf("seed %d: Stop failed during cleanup: %v\n", seed, err)
		}
	})
	return tm
}

// advance moves the fake clock forward by d and gives the worker
// goroutine a chance to observe it, the way backoff_test.go's
// "Backoff Timing With Clock" subtest drives clockz.FakeClock.
func advance(clock fakeClock, d time.Duration) {
	clock.Advance(d)
	clock.BlockUntilReady()
	time.Sleep(10 * time.Millisecond)
}

// A single timeout fires once, after its delay, and never before.
func TestScheduleFiresAfterDelay(t *testing.T) {
	clock := clockz.NewFakeClock()
	tm := newTestTimer(t, clock, 100*time.Millisecond, 16, 0)

	fired := make(chan struct{}, 1)
	rec, err := tm.Schedule(func(*Timeout) { fired <- struct{}{} }, 250*time.Millisecond)
	if err != nil {
		t.Fatalf("seed %d: Schedule failed: %v\n", seed, err)
	}

	advance(clock, 200*time.Millisecond)
	select {
	case <-fired:
		t.Fatalf("seed %d: task fired too early\n", seed)
	default:
	}

	advance(clock, 200*time.Millisecond)
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatalf("seed %d: task never fired\n", seed)
	}

	if !rec.IsExpired() {
		t.Errorf("seed %d: expected IsExpired() true after firing\n", seed)
	}
	if rec.IsCancelled() {
		t.Errorf("seed %d: fired record must not report IsCancelled\n", seed)
	}
}

// Cancel() is idempotent, and a cancelled task never runs.
func TestCancelBeforeFireIsIdempotentAndPreventsFiring(t *testing.T) {
	clock := clockz.NewFakeClock()
	tm := newTestTimer(t, clock, 100*time.Millisecond, 16, 0)

	var calls int32
	rec, err := tm.Schedule(func(*Timeout) { atomic.AddInt32(&calls, 1) }, 500*time.Millisecond)
	if err != nil {
		t.Fatalf("seed %d: Schedule failed: %v\n", seed, err)
	}

	if ok := rec.Cancel(); !ok {
		t.Fatalf("seed %d: first Cancel() should return true\n", seed)
	}
	if ok := rec.Cancel(); ok {
		t.Errorf("seed %d: second Cancel() should return false\n", seed)
	}
	if !rec.IsCancelled() {
		t.Errorf("seed %d: expected IsCancelled() true\n", seed)
	}

	advance(clock, 1000*time.Millisecond)

	if atomic.LoadInt32(&calls) != 0 {
		t.Errorf("seed %d: cancelled task ran %d times, want 0\n", seed, calls)
	}
}

// Cancelling after a task has already fired is a documented no-op.
func TestCancelAfterFireIsNoop(t *testing.T) {
	clock := clockz.NewFakeClock()
	tm := newTestTimer(t, clock, 100*time.Millisecond, 16, 0)

	fired := make(chan struct{}, 1)
	rec, err := tm.Schedule(func(*Timeout) { fired <- struct{}{} }, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("seed %d: Schedule failed: %v\n", seed, err)
	}

	advance(clock, 200*time.Millisecond)
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatalf("seed %d: task never fired\n", seed)
	}

	if rec.Cancel() {
		t.Errorf("seed %d: Cancel() after fire should return false\n", seed)
	}
}

// The pending counter tracks outstanding (not fired, not cancelled)
// records exactly.
func TestPendingCountInvariant(t *testing.T) {
	clock := clockz.NewFakeClock()
	tm := newTestTimer(t, clock, 100*time.Millisecond, 16, 0)

	var recs []*Timeout
	for i := 0; i < 5; i++ {
		rec, err := tm.Schedule(func(*Timeout) {}, time.Duration(i+1)*100*time.Millisecond)
		if err != nil {
			t.Fatalf("seed %d: Schedule failed: %v\n", seed, err)
		}
		recs = append(recs, rec)
	}
	if got := tm.Pending(); got != 5 {
		t.Fatalf("seed %d: Pending() = %d, want 5\n", seed, got)
	}

	recs[0].Cancel()
	advance(clock, 100*time.Millisecond)
	if got := tm.Pending(); got != 4 {
		t.Errorf("seed %d: Pending() after one cancel = %d, want 4\n", seed, got)
	}

	advance(clock, 600*time.Millisecond)
	if got := tm.Pending(); got != 0 {
		t.Errorf("seed %d: Pending() after all fire = %d, want 0\n", seed, got)
	}
}

// Schedule rejects submissions once the pending limit is reached.
func TestScheduleRejectsOverPendingLimit(t *testing.T) {
	clock := clockz.NewFakeClock()
	tm := newTestTimer(t, clock, 100*time.Millisecond, 16, 2)

	if _, err := tm.Schedule(func(*Timeout) {}, time.Second); err != nil {
		t.Fatalf("seed %d: unexpected error on 1st Schedule: %v\n", seed, err)
	}
	if _, err := tm.Schedule(func(*Timeout) {}, time.Second); err != nil {
		t.Fatalf("seed %d: unexpected error on 2nd Schedule: %v\n", seed, err)
	}
	if _, err := tm.Schedule(func(*Timeout) {}, time.Second); err != ErrPendingLimitExceeded {
		t.Errorf("seed %d: 3rd Schedule = %v, want ErrPendingLimitExceeded\n", seed, err)
	}
}

// Shutdown collects still-pending records into the unprocessed set,
// all still reporting INIT.
func TestStopCollectsUnprocessed(t *testing.T) {
	clock := clockz.NewFakeClock()
	tm, err := NewTimer(100*time.Millisecond, 16, 0, WithClock(clock))
	if err != nil {
		t.Fatalf("seed %d: NewTimer failed: %v\n", seed, err)
	}

	var recs []*Timeout
	for i := 0; i < 10; i++ {
		rec, err := tm.Schedule(func(*Timeout) {}, 10*time.Second)
		if err != nil {
			t.Fatalf("seed %d: Schedule failed: %v\n", seed, err)
		}
		recs = append(recs, rec)
	}

	advance(clock, 150*time.Millisecond)

	unprocessed, err := tm.Stop()
	if err != nil {
		t.Fatalf("seed %d: Stop failed: %v\n", seed, err)
	}
	if len(unprocessed) != 10 {
		t.Errorf("seed %d: len(unprocessed) = %d, want 10\n", seed, len(unprocessed))
	}
	for _, rec := range recs {
		if _, ok := unprocessed[rec]; !ok {
			t.Errorf("seed %d: record missing from unprocessed set\n", seed)
		}
		if rec.State() != stateInit {
			t.Errorf("seed %d: unprocessed record state = %s, want INIT\n", seed, rec.State())
		}
	}

	// Stop is idempotent: a second call on an already-shutdown Timer
	// returns an empty set and no error, never ErrAlreadyShutdown.
	second, err := tm.Stop()
	if err != nil {
		t.Errorf("seed %d: second Stop() = %v, want nil\n", seed, err)
	}
	if len(second) != 0 {
		t.Errorf("seed %d: second Stop() unprocessed = %v, want empty\n", seed, second)
	}
}

// Stop called from within a running task must fail rather than
// deadlock.
func TestStopFromWorkerFails(t *testing.T) {
	clock := clockz.NewFakeClock()
	tm, err := NewTimer(100*time.Millisecond, 16, 0, WithClock(clock))
	if err != nil {
		t.Fatalf("seed %d: NewTimer failed: %v\n", seed, err)
	}
	t.Cleanup(func() { tm.Stop() })

	errCh := make(chan error, 1)
	_, err = tm.Schedule(func(*Timeout) {
		_, stopErr := tm.Stop()
		errCh <- stopErr
	}, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("seed %d: Schedule failed: %v\n", seed, err)
	}

	advance(clock, 200*time.Millisecond)

	select {
	case stopErr := <-errCh:
		if stopErr != ErrStopFromWorker {
			t.Errorf("seed %d: Stop from worker = %v, want ErrStopFromWorker\n", seed, stopErr)
		}
	case <-time.After(time.Second):
		t.Fatalf("seed %d: task never ran\n", seed)
	}
}

// Many concurrent producers scheduling and cancelling must never panic
// or corrupt the pending count.
func TestConcurrentScheduleAndCancel(t *testing.T) {
	clock := clockz.NewFakeClock()
	tm := newTestTimer(t, clock, 50*time.Millisecond, 64, 0)

	const producers = 20
	const perProducer = 50
	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				rec, err := tm.Schedule(func(*Timeout) {}, time.Duration(i%5+1)*50*time.Millisecond)
				if err != nil {
					t.Errorf("seed %d: Schedule failed: %v\n", seed, err)
					return
				}
				if i%2 == 0 {
					rec.Cancel()
				}
			}
		}(p)
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		advance(clock, 50*time.Millisecond)
	}

	if got := tm.Pending(); got != 0 {
		t.Errorf("seed %d: Pending() after everything settles = %d, want 0\n", seed, got)
	}
}

func TestDefaultTimerConstants(t *testing.T) {
	tm, err := DefaultTimer()
	if err != nil {
		t.Fatalf("seed %d: DefaultTimer failed: %v\n", seed, err)
	}
	defer tm.Stop()
	if tm.tickDuration != DefaultTickDuration {
		t.Errorf("seed %d: tickDuration = %s, want %s\n", seed, tm.tickDuration, DefaultTickDuration)
	}
	if tm.wheel.len() != DefaultTicksPerWheel {
		t.Errorf("seed %d: wheel length = %d, want %d\n", seed, tm.wheel.len(), DefaultTicksPerWheel)
	}
}

func TestNewTimerRejectsBadTickDuration(t *testing.T) {
	if _, err := NewTimer(0, 16, 0); err != ErrTickDurationTooSmall {
		t.Errorf("seed %d: NewTimer(0, ...) = %v, want ErrTickDurationTooSmall\n", seed, err)
	}
}

func TestScheduleRejectsNilTask(t *testing.T) {
	clock := clockz.NewFakeClock()
	tm := newTestTimer(t, clock, 100*time.Millisecond, 16, 0)
	if _, err := tm.Schedule(nil, time.Second); err != ErrNilTask {
		t.Errorf("seed %d: Schedule(nil, ...) = %v, want ErrNilTask\n", seed, err)
	}
}
