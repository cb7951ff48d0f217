// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package hwheel

import (
	"github.com/zoobzio/tracez"
)

// Span keys and tags, grounded on zoobzio/pipz's timeout.go
// (TimeoutProcessSpan / TimeoutTagDuration etc.): one span per worker
// tick, covering the drain-cancellations/transfer-submissions/expire-
// bucket sequence as a single unit of work.
const (
	TickSpan = tracez.Key("hwheel.tick")

	TagTick        = tracez.Tag("hwheel.tick.n")
	TagTransferred = tracez.Tag("hwheel.tick.transferred")
	TagExpired     = tracez.Tag("hwheel.tick.expired")
	TagCancelled   = tracez.Tag("hwheel.tick.cancelled")
)
