// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package hwheel

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"
)

// maxSubmissionsPerTick bounds how many records transferTimeoutsToBuckets
// will move from the pending-submission queue into wheel buckets in a
// single tick, so a submission burst cannot starve bucket expiry. A
// tick that exceeds this catches up on the next tick; it is never
// silently dropped.
const maxSubmissionsPerTick = 100000

// runWorker is the Timer's single dedicated worker goroutine. It
// publishes the start instant once, then loops: wait for the next
// tick, drain cancellations, transfer new submissions into buckets,
// expire the current bucket, repeat, until shutdown is signalled. A
// ConsistencyError from the bucket expiry is logged at error level and
// ends the loop, the same as a shutdown.
//
// Ported from WTimer.run/ticker (wtimer.go,
// wtimer_ticker.go), trimmed of its sharded-runqueue dispatch (see
// DESIGN.md) down to a single inline loop.
func (t *Timer) runWorker() {
	defer t.wg.Done()

	t.publishStart(t.clock.Now())

	for {
		deadline, shutdown := t.waitForNextTick()
		if shutdown {
			break
		}
		atomic.StoreUint64(&t.tick, deadline.Val())
		t.checkWallClock()

		_, span := t.tracer.StartSpan(context.Background(), TickSpan)
		span.SetTag(TagTick, deadline.String())

		cancelled := t.processCancelledTasks()
		transferred := t.transferTimeoutsToBuckets(deadline)

		b := t.wheel.at(deadline)
		if err := b.expire(deadline); err != nil {
			if ERRon() {
				ERR("%v\n", err)
			}
			span.Finish()
			break
		}

		span.SetTag(TagTransferred, strconv.Itoa(transferred))
		span.SetTag(TagCancelled, strconv.Itoa(cancelled))
		span.Finish()
	}

	t.unprocessedCh <- t.drainShutdown()
}

// waitForNextTick sleeps until tickDuration * (tick + 1) past the
// start instant, where tick is the Timer's current tick counter. It
// returns (deadline, false) once that instant has passed, or
// (0, true) if the sleep was interrupted by shutdown.
//
// The (Ticks, bool) pair is a sum-typed replacement for WTimer's
// overloaded numeric return value: no magic values, no +1 remap.
func (t *Timer) waitForNextTick() (Ticks, bool) {
	next := atomic.LoadUint64(&t.tick) + 1
	target := t.startTime().Add(time.Duration(next) * t.tickDuration)
	now := t.clock.Now()
	if !now.Before(target) {
		return Ticks(next), false
	}
	d := time.Duration(ceilToMillis(target.Sub(now))) * time.Millisecond
	select {
	case <-t.clock.After(d):
		return Ticks(next), false
	case <-t.shutdownCh:
		return 0, true
	}
}

// transferTimeoutsToBuckets drains up to maxSubmissionsPerTick records
// from the pending-submission queue and links each into the bucket its
// deadline hashes to, computing remainingRounds from how many full
// trips around the wheel it must wait before it is due. A record
// already cancelled before it was ever linked
// into a bucket is simply dropped here: its pending-count decrement
// and cancellation event were already handled by the cancellation
// queue drain (see processCancelledTasks), so it is never touched
// twice.
func (t *Timer) transferTimeoutsToBuckets(currentTick Ticks) int {
	n := 0
	for ; n < maxSubmissionsPerTick; n++ {
		rec, ok := t.pendingQueue.tryDequeue()
		if !ok {
			break
		}
		if rec.IsCancelled() {
			continue
		}
		calculated := rec.deadline
		if calculated.LT(currentTick) {
			calculated = currentTick
		}
		wheelLen := uint64(t.wheel.len())
		rec.remainingRounds = int64((calculated.Val() - currentTick.Val()) / wheelLen)
		t.wheel.at(calculated).add(rec)
	}
	return n
}

// processCancelledTasks fully drains the cancellation queue. Every
// record dequeued here was already moved to CANCELLED by Cancel (the
// queue is how Cancel tells the worker "unlink this if it is linked
// anywhere"), so each dequeue corresponds to exactly one pending-count
// decrement and one cancellation event, regardless of whether the
// record had already been linked into a bucket, was still only on the
// pending-submission queue, or both were racing: the pending count
// decreases by exactly one per Cancel() call that returns true.
func (t *Timer) processCancelledTasks() int {
	n := 0
	for {
		rec, ok := t.cancelQueue.tryDequeue()
		if !ok {
			break
		}
		if rec.bucket != nil {
			rec.bucket.remove(rec)
		}
		t.decPending()
		t.metrics.Counter(CancelledTotal).Inc()
		t.emit(EventCancel, Event{Deadline: rec.deadline, Timestamp: time.Now()})
		n++
	}
	return n
}

// drainShutdown runs once, after the worker loop has exited: it walks
// every bucket in the wheel collecting still-INIT records as
// unprocessed, then drains whatever is left on the pending-submission
// and cancellation queues, so nothing submitted or cancelled in the
// narrow window around shutdown is lost.
func (t *Timer) drainShutdown() map[*Timeout]struct{} {
	unprocessed := make(map[*Timeout]struct{})

	for i := 0; i < t.wheel.len(); i++ {
		t.wheel.buckets[i].clear(unprocessed)
	}

	for {
		rec, ok := t.pendingQueue.tryDequeue()
		if !ok {
			break
		}
		if rec.state.transition(stateCollected) {
			t.decPending()
			t.metrics.Counter(UnprocessedTotal).Inc()
			t.emit(EventUnprocessed, Event{Deadline: rec.deadline, Timestamp: time.Now()})
			unprocessed[rec] = struct{}{}
		}
	}

	for {
		rec, ok := t.cancelQueue.tryDequeue()
		if !ok {
			break
		}
		t.decPending()
		t.metrics.Counter(CancelledTotal).Inc()
		t.emit(EventCancel, Event{Deadline: rec.deadline, Timestamp: time.Now()})
	}

	return unprocessed
}
