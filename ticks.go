// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package hwheel

import (
	"strconv"
)

// Ticks is an absolute tick count, relative to a Timer's start
// instant. It is always a count of tickDuration-sized units, never a
// wall-clock or wraparound-aware value: a single flat wheel has no
// need for WTimer's multi-wheel bit-packing, since 2^64 ticks at
// any practical tick duration vastly outlives any process.
type Ticks uint64

// NewTicks creates a Ticks value from a uint64.
func NewTicks(u uint64) Ticks {
	return Ticks(u)
}

// Val returns the tick count as a uint64.
func (t Ticks) Val() uint64 {
	return uint64(t)
}

// Add adds another Ticks value and returns the result.
func (t Ticks) Add(u Ticks) Ticks {
	return t + u
}

// Sub subtracts another Ticks value and returns the result.
// The caller must ensure u <= t; ticks never wrap in this module.
func (t Ticks) Sub(u Ticks) Ticks {
	return t - u
}

// LT returns true if t < u.
func (t Ticks) LT(u Ticks) bool {
	return t < u
}

// LE returns true if t <= u.
func (t Ticks) LE(u Ticks) bool {
	return t <= u
}

// GT returns true if t > u.
func (t Ticks) GT(u Ticks) bool {
	return t > u
}

// GE returns true if t >= u.
func (t Ticks) GE(u Ticks) bool {
	return t >= u
}

// EQ returns true if t == u.
func (t Ticks) EQ(u Ticks) bool {
	return t == u
}

// String converts a tick value to a string.
func (t Ticks) String() string {
	return strconv.FormatUint(uint64(t), 10)
}
