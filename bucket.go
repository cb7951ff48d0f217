// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package hwheel

import "time"

// Bucket is one slot of the wheel: a doubly-linked, intrusive FIFO of
// Timeout records that share the same (tick mod wheelLength) position.
// It is touched only by the worker goroutine, so it needs no locking
// of its own.
//
// Ported from timerLst (timer_lst.go), trimmed to the
// four operations a flat wheel needs: add, expire, remove, clear.
// timerLst's rmSubList/insertSubList/forEachSafeRm exist only to
// support hierarchical-wheel redistribution between W0..W3, which a
// flat hashed wheel never needs.
type Bucket struct {
	idx  int
	head Timeout // sentinel; only prev/next are used
}

func (b *Bucket) init(idx int) {
	b.idx = idx
	b.head.next = &b.head
	b.head.prev = &b.head
}

func (b *Bucket) isEmpty() bool {
	return b.head.next == &b.head
}

// add appends t at the tail of the bucket. t must be detached (not
// already linked into any bucket).
func (b *Bucket) add(t *Timeout) {
	if t.bucket != nil || t.next != nil || t.prev != nil {
		PANIC("bucket.add called on an already-linked record: %p\n", t)
	}
	t.prev = b.head.prev
	t.next = &b.head
	t.prev.next = t
	b.head.prev = t
	t.bucket = b
}

// remove unlinks t from the bucket and returns what was its successor.
// It does not touch the owning Timer's pending counter: callers decide
// whether and when a removal corresponds to a terminal state (fired,
// cancelled, or reported unprocessed) and adjust the counter there,
// so a record is never double-counted when it is cancelled and
// unlinked from two different places in the same tick.
func (b *Bucket) remove(t *Timeout) *Timeout {
	if t.bucket != b {
		PANIC("bucket.remove called for a record on a different bucket:"+
			" record bucket %p, this bucket %p\n", t.bucket, b)
	}
	next := t.next
	t.prev.next = t.next
	t.next.prev = t.prev
	t.next = nil
	t.prev = nil
	t.bucket = nil
	return next
}

// expire walks the bucket from head to tail against the tick it is
// being expired at (now). For each record:
//   - remainingRounds <= 0: unlink it; if its deadline is due, fire it
//     (Timeout.expire is itself a no-op if the record was concurrently
//     cancelled, so firing a cancelled record here never runs its
//     task); otherwise the record landed in the wrong slot, which is
//     an internal-consistency violation.
//   - otherwise, if cancelled: unlink and discard (the final pending
//     decrement for it happens when the cancellation queue drain
//     eventually dequeues it, not here, to avoid double-counting).
//   - otherwise: decrement remainingRounds and leave it linked.
//
// It returns the first ConsistencyError encountered, if any, but
// continues walking the rest of the bucket first so a single bad
// record does not leave its siblings stuck.
func (b *Bucket) expire(now Ticks) error {
	var firstErr error
	t := b.head.next
	for t != &b.head {
		next := t.next
		switch {
		case t.remainingRounds <= 0:
			b.remove(t)
			if t.deadline.LE(now) {
				if t.expire() {
					if t.Timer != nil {
						t.Timer.decPending()
						t.Timer.metrics.Counter(FiredTotal).Inc()
						t.Timer.emit(EventFire, Event{Deadline: t.deadline, Timestamp: time.Now()})
					}
				}
			} else if firstErr == nil {
				firstErr = &ConsistencyError{
					Bucket:    b.idx,
					Deadline:  t.deadline.Val(),
					BucketDue: now.Val(),
				}
			}
		case t.IsCancelled():
			b.remove(t)
		default:
			t.remainingRounds--
		}
		t = next
	}
	return firstErr
}

// clear drains every record still linked in the bucket, for use during
// shutdown. A record is claimed into set only if it wins the
// stateCollected compare-and-swap, which can only happen if it is
// still genuinely in INIT; a record concurrently being cancelled on
// another goroutine loses that race and is simply dropped here; the
// pending decrement for it happens exactly once, when the
// cancellation queue is drained (see Timer.drainShutdown), never
// here too.
func (b *Bucket) clear(set map[*Timeout]struct{}) {
	for !b.isEmpty() {
		t := b.head.next
		b.remove(t)
		if t.state.transition(stateCollected) {
			if t.Timer != nil {
				t.Timer.decPending()
				t.Timer.metrics.Counter(UnprocessedTotal).Inc()
				t.Timer.emit(EventUnprocessed, Event{Deadline: t.deadline, Timestamp: time.Now()})
			}
			set[t] = struct{}{}
		}
	}
}
