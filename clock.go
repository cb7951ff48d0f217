// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package hwheel

import (
	"time"

	"github.com/zoobzio/clockz"
)

// Clock is the monotonic time source the worker's sleep loop runs
// against. It is the same shape as github.com/zoobzio/clockz.Clock,
// the interface pipz's own
// Timeout/Backoff/RateLimiter/WorkerPool connectors accept through
// their WithClock(...) options, so a *Timer can be driven by
// clockz's fake clock in tests exactly the way pipz's own test suite
// drives its connectors.
type Clock = clockz.Clock

// RealClock is the default Clock, backed by the real wall clock via
// clockz.RealClock.
var RealClock Clock = clockz.RealClock

// ceilToMillis rounds d up to the next whole millisecond. This single
// helper backs both the deadline computation in Timer.Schedule and the
// sleep-duration computation in worker.waitForNextTick, so the
// rounding rule is applied uniformly everywhere a duration crosses
// into tick arithmetic.
func ceilToMillis(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	ms := int64(d / time.Millisecond)
	if d%time.Millisecond != 0 {
		ms++
	}
	return ms
}

// ceilDivUint64 returns ceil(a / b), b > 0. Used to turn a millisecond
// deadline into the absolute tick it hashes to: the deadline divided
// by the tick duration, rounded up, is always the target tick.
func ceilDivUint64(a, b uint64) uint64 {
	if a == 0 {
		return 0
	}
	return (a-1)/b + 1
}
