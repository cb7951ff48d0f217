// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package hwheel

import (
	"github.com/zoobzio/metricz"
)

// Metric keys, grounded on the metricz.Key constant blocks in
// zoobzio/pipz's connectors (timeout.go, backoff.go): one Counter per
// terminal outcome a Timeout record can reach, plus a Gauge tracking
// the number of records currently outstanding.
const (
	ScheduledTotal   = metricz.Key("hwheel.scheduled.total")
	FiredTotal       = metricz.Key("hwheel.fired.total")
	CancelledTotal   = metricz.Key("hwheel.cancelled.total")
	RejectedTotal    = metricz.Key("hwheel.rejected.total")
	UnprocessedTotal = metricz.Key("hwheel.unprocessed.total")
	PendingGauge     = metricz.Key("hwheel.pending.count")
)

// newMetrics builds a registry with every counter and gauge this
// package reports pre-registered, the way NewTimeout in
// zoobzio/pipz's timeout.go pre-registers its own keys at
// construction time rather than on first use.
func newMetrics() *metricz.Registry {
	m := metricz.New()
	m.Counter(ScheduledTotal)
	m.Counter(FiredTotal)
	m.Counter(CancelledTotal)
	m.Counter(RejectedTotal)
	m.Counter(UnprocessedTotal)
	m.Gauge(PendingGauge)
	return m
}
