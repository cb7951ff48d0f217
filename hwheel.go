// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

// Package hwheel provides a hashed timing wheel: a high-throughput,
// approximate timer facility for scheduling large numbers of one-shot
// deferred tasks with amortised O(1) insertion and cancellation.
//
// A single dedicated worker goroutine owns the wheel, advances its
// cursor one tick at a time, and fires expired tasks synchronously.
// Producers on arbitrary goroutines call Schedule to submit work and
// get back a *Timeout handle that can be cancelled at any time before
// it fires.
package hwheel

const NAME = "hwheel"

var BuildTags []string
