// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package hwheel

// MaxTicksPerWheel is the largest wheel length this module will
// allocate.
const MaxTicksPerWheel = 1 << 30

// wheel is the fixed-length array of Buckets a Timer hashes ticks
// into. Its length is always a power of two so the active bucket
// index for an absolute tick t is the cheap bitmask t & mask, never a
// modulo.
//
// Ported from the wheel/WTimer.wheels construction in
// wtimer.go's Init, collapsed from four cooperating
// wheels (W0..W3) down to a single flat wheel; remainingRounds (see
// bucket.go) stands in for what the higher wheels there provide.
type wheel struct {
	buckets []Bucket
	mask    uint64
}

func newWheel(ticksPerWheel int) (*wheel, error) {
	if ticksPerWheel < 1 {
		return nil, ErrTicksPerWheelZero
	}
	if ticksPerWheel > MaxTicksPerWheel {
		return nil, ErrTicksPerWheelTooBig
	}
	size := nextPowerOfTwo(ticksPerWheel)
	w := &wheel{
		buckets: make([]Bucket, size),
		mask:    uint64(size - 1),
	}
	for i := range w.buckets {
		w.buckets[i].init(i)
	}
	return w, nil
}

// at returns the bucket a given absolute tick hashes to.
func (w *wheel) at(tick Ticks) *Bucket {
	return &w.buckets[tick.Val()&w.mask]
}

// len returns the wheel's length (always a power of two).
func (w *wheel) len() int {
	return len(w.buckets)
}

// nextPowerOfTwo returns the smallest power of two >= n, n >= 1.
func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
