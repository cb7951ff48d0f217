// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package hwheel

import (
	"sync/atomic"
)

// recordState is the lifecycle state of a Timeout record. It moves
// monotonically: stateInit -> stateCancelled or stateInit -> stateExpired,
// and no other transition is possible.
type recordState int32

const (
	stateInit recordState = iota
	stateCancelled
	stateExpired

	// stateCollected is not part of the public three-state model and
	// is never returned by State(); it is an internal claim used by
	// the shutdown drain (see bucket.clear, worker.drainShutdown) to
	// decide, exactly once per record, whether a record still sitting
	// in INIT at shutdown belongs to the unprocessed set or to a
	// cancellation that is racing it on another goroutine. load()
	// reports it back as stateInit, since from the public API's point
	// of view it is exactly that: never fired, never cancelled.
	stateCollected
)

func (s recordState) String() string {
	switch s {
	case stateInit, stateCollected:
		return "INIT"
	case stateCancelled:
		return "CANCELLED"
	case stateExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// atomicState wraps an atomic recordState with a single CAS-gated
// transition method. Ported from tinfo.go's load/CAS/retry
// loop idiom, simplified to three states since a Timeout record here
// has no re-arm or fast/goroutine execution flavours to encode.
type atomicState struct {
	v int32
}

func (a *atomicState) load() recordState {
	v := recordState(atomic.LoadInt32(&a.v))
	if v == stateCollected {
		return stateInit
	}
	return v
}

// transition attempts to move the state from stateInit to to. It
// returns true on success; false if the state was not stateInit. Since
// stateCancelled, stateExpired and stateCollected all compete for the
// same compare-and-swap starting from stateInit, at most one of
// cancel(), expire() and the shutdown-collection claim ever succeeds
// for a given record.
func (a *atomicState) transition(to recordState) bool {
	return atomic.CompareAndSwapInt32(&a.v, int32(stateInit), int32(to))
}
