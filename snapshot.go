// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package hwheel

import (
	"sync/atomic"

	"github.com/intuitivelabs/timestamp"
)

// Snapshot is a point-in-time diagnostic view of a Timer, not part of
// the scheduling path itself.
type Snapshot struct {
	Tick       uint64
	Pending    int64
	WheelLen   int
	StartedAt  timestamp.TS
	BadTimeHit uint64 // number of times the wall clock was observed going backwards
}

// Snapshot returns a diagnostic snapshot of the Timer's current state.
// Safe to call from any goroutine at any time.
func (t *Timer) Snapshot() Snapshot {
	s := Snapshot{
		Tick:       atomic.LoadUint64(&t.tick),
		Pending:    t.Pending(),
		WheelLen:   t.wheel.len(),
		BadTimeHit: atomic.LoadUint64(&t.badTime),
	}
	// startedAt is written by the worker before it closes startCh.
	select {
	case <-t.startCh:
		s.StartedAt = t.startedAt
	default:
	}
	return s
}

// checkWallClock is a diagnostic-only guard, independent of the
// pluggable Clock the worker actually schedules against: it tracks
// the real wall clock via intuitivelabs/timestamp and warns if it is
// ever observed moving backwards, exactly the condition WTimer's
// own ticker() (wtimer_ticker.go) guards against. It never alters
// scheduling decisions, and it is only ever called from the worker
// goroutine, so lastWallClock needs no synchronisation of its own.
// A fake clock in tests never trips this guard, since it reads the
// real wall clock directly rather than t.clock.
func (t *Timer) checkWallClock() {
	now := timestamp.Now()
	if now.Before(t.lastWallClock) {
		n := atomic.AddUint64(&t.badTime, 1)
		if WARNon() {
			WARN("wall clock observed going backwards (%d times so far)\n", n)
		}
	}
	t.lastWallClock = now
}
