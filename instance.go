// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package hwheel

import (
	"runtime"
	"sync/atomic"
)

// maxRecommendedInstances is the point past which running more *Timer
// instances in one process is almost certainly a mistake, since each
// one owns a dedicated worker goroutine. It is a soft limit:
// construction still succeeds, but a single warning is logged the
// first time it is crossed, the way WTimer's own package-level
// counters (see tinfo.go's packed-uint32 bookkeeping) are used for
// visibility rather than enforcement.
const maxRecommendedInstances = 64

var (
	liveInstances   int64 // atomic
	warnedInstances int32 // atomic, 0/1 latch
)

// trackInstance increments the process-wide live-instance count,
// warning once if it crosses maxRecommendedInstances, and arranges for
// a runtime finalizer to decrement it again when t is garbage
// collected, whether or not it was stopped. Stop itself does not
// decrement the count. New
// instances are comparatively expensive, each owning a wheel, two
// queues, and a worker goroutine, so a process accumulating many of
// them unintentionally is almost certainly a bug.
func trackInstance(t *Timer) {
	n := atomic.AddInt64(&liveInstances, 1)
	if n > maxRecommendedInstances && atomic.CompareAndSwapInt32(&warnedInstances, 0, 1) {
		if WARNon() {
			WARN("more than %d live Timer instances (%d): each owns a dedicated"+
				" worker goroutine, this is likely a bug\n", maxRecommendedInstances, n)
		}
	}
	runtime.SetFinalizer(t, finalizeInstance)
}

// finalizeInstance is the runtime finalizer registered by trackInstance.
// It only decrements the counter; it never touches t's worker or
// queues. A started *Timer stays reachable from its own worker
// goroutine until that goroutine exits, so it is only finalized after
// its worker has exited or if it was never started.
func finalizeInstance(t *Timer) {
	atomic.AddInt64(&liveInstances, -1)
}

// LiveInstances returns the current number of constructed, not yet
// finalized, *Timer values in this process. Diagnostic only.
func LiveInstances() int64 {
	return atomic.LoadInt64(&liveInstances)
}
