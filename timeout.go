// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package hwheel

import (
	"sync/atomic"
)

// TaskFunc is the work a Timeout runs on expiry. It is called exactly
// once, synchronously, on the Timer's worker goroutine, with the
// Timeout itself as the argument.
type TaskFunc func(*Timeout)

// Timeout is both the internal timer-wheel record and the handle
// returned to callers by Schedule. Its prev/next/bucket fields are
// intrusive doubly-linked-list links, touched only by the worker
// goroutine and requiring no synchronisation; pqNext/cqNext are
// separate intrusive links used by the pending-submission and
// cancellation MPSC queues respectively, kept apart so a record queued
// on one is never disturbed by the other.
//
// Ported from TimerLnk (timers.go), trimmed from its
// multi-flag fast/goroutine/re-arm model down to a simpler one-shot
// INIT/CANCELLED/EXPIRED state machine.
type Timeout struct {
	task  TaskFunc
	Timer *Timer // owning timer, for pending-count bookkeeping

	deadline        Ticks
	remainingRounds int64

	state atomicState

	// bucket list linkage; worker-goroutine-only, no synchronisation.
	prev, next *Timeout
	bucket     *Bucket

	// queue linkage; atomics, producers and the worker race here.
	pqNext atomic.Pointer[Timeout]
	cqNext atomic.Pointer[Timeout]
}

func pqLink(t *Timeout) *atomic.Pointer[Timeout] { return &t.pqNext }
func cqLink(t *Timeout) *atomic.Pointer[Timeout] { return &t.cqNext }

// Deadline returns the record's absolute deadline, in ticks from the
// owning Timer's start instant.
func (t *Timeout) Deadline() Ticks {
	return t.deadline
}

// State returns the current lifecycle state.
func (t *Timeout) State() recordState {
	return t.state.load()
}

// IsCancelled reports whether the Timeout was cancelled before firing.
func (t *Timeout) IsCancelled() bool {
	return t.state.load() == stateCancelled
}

// IsExpired reports whether the Timeout has already fired.
func (t *Timeout) IsExpired() bool {
	return t.state.load() == stateExpired
}

// Cancel attempts to move the Timeout from INIT to CANCELLED. It
// returns true exactly once, on the call that performs the
// transition; subsequent calls return false. On success the record is
// appended to the owning Timer's cancellation queue so the worker can
// unlink it from its bucket, if any, on its next tick.
func (t *Timeout) Cancel() bool {
	if !t.state.transition(stateCancelled) {
		return false
	}
	t.Timer.cancelQueue.tryEnqueue(t)
	return true
}

// expire attempts to move the Timeout from INIT to EXPIRED and, on
// success, runs its task, returning true. If the record was already
// CANCELLED the transition fails, the task never runs, and expire
// returns false: a task whose Cancel() returned true never runs. It is
// worker-only: called from Bucket.expire while walking the bucket's
// list. Panics raised by the task are caught and logged so a single
// bad task never disrupts the worker loop.
func (t *Timeout) expire() (fired bool) {
	if !t.state.transition(stateExpired) {
		return false
	}
	fired = true
	if t.Timer != nil {
		atomic.AddInt32(&t.Timer.runningTask, 1)
		defer atomic.AddInt32(&t.Timer.runningTask, -1)
	}
	defer func() {
		if r := recover(); r != nil {
			if WARNon() {
				WARN("task panicked: %v\n", r)
			}
		}
	}()
	t.task(t)
	return true
}
