// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package hwheel

import (
	"sync/atomic"
)

// mpscQueue is an unbounded, intrusive, lock-free multi-producer
// single-consumer queue of *Timeout records (Vyukov's classic MPSC
// design: a single atomic Swap serialises producers on enqueue, the
// single consumer owns tail and dequeues without compare-and-swap).
//
// It is intrusive: the link used to chain records together lives
// inside the Timeout struct itself (selected via the link accessor),
// so enqueuing never allocates a wrapper node. WTimer has no MPSC
// queue of its own (wtimer.go uses locked, sharded run queues instead)
// but is comfortable with hand-rolled atomic/CAS structures throughout
// tinfo.go and its runqueue bookkeeping; this is new code in that same
// idiom, used here for both the pending-submission and the
// cancellation queue, each with its own link field so a record can be
// queued on one without disturbing its membership, if any, on the
// other.
type mpscQueue struct {
	head atomic.Pointer[Timeout]
	tail atomic.Pointer[Timeout]
	link func(*Timeout) *atomic.Pointer[Timeout]
}

// newMPSCQueue creates an empty queue. link must return the address of
// the per-record atomic.Pointer[Timeout] this queue uses to chain its
// elements; different queues over the same record type must use
// different links.
func newMPSCQueue(link func(*Timeout) *atomic.Pointer[Timeout]) *mpscQueue {
	dummy := &Timeout{}
	q := &mpscQueue{link: link}
	q.head.Store(dummy)
	q.tail.Store(dummy)
	return q
}

// tryEnqueue appends t to the tail of the queue. Safe to call from any
// number of concurrent goroutines; never blocks.
func (q *mpscQueue) tryEnqueue(t *Timeout) {
	q.link(t).Store(nil)
	prev := q.head.Swap(t)
	q.link(prev).Store(t)
}

// tryDequeue removes and returns the record at the head of the queue.
// It returns false if the queue is currently empty. Must only be
// called from a single consumer goroutine at a time.
func (q *mpscQueue) tryDequeue() (*Timeout, bool) {
	tail := q.tail.Load()
	next := q.link(tail).Load()
	if next == nil {
		return nil, false
	}
	q.tail.Store(next)
	return next, true
}
