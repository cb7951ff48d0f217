// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package hwheel

import (
	"context"
	"time"

	"github.com/zoobzio/hookz"
)

// Event is published through a Timer's hookz.Hooks for every terminal
// outcome a Timeout record reaches, grounded on zoobzio/pipz's
// TimeoutEvent (timeout.go): a single struct shape reused across
// every hook key this package defines, rather than one type per event.
type Event struct {
	Deadline  Ticks
	Timestamp time.Time
	Err       error // set only for EventReject
}

// Hook keys, one per terminal outcome a record can reach: it fires, is
// cancelled before firing, is rejected at submission (pending limit
// exceeded), or survives to shutdown unprocessed.
const (
	EventFire        = hookz.Key("hwheel.fire")
	EventCancel      = hookz.Key("hwheel.cancel")
	EventReject      = hookz.Key("hwheel.reject")
	EventUnprocessed = hookz.Key("hwheel.unprocessed")
)

// emit publishes ev under key, discarding the error the way
// zoobzio/pipz's connectors do at their own Emit call sites
// (timeout.go: "//nolint:errcheck"): a hook handler's own error is
// surfaced to whoever subscribed via OnFire/OnCancel/etc, not to the
// worker loop that triggered it.
func (t *Timer) emit(key hookz.Key, ev Event) {
	if t.hooks == nil {
		return
	}
	_ = t.hooks.Emit(context.Background(), key, ev)
}

// OnFire registers a handler called when a Timeout's task has run.
func (t *Timer) OnFire(handler func(context.Context, Event) error) error {
	_, err := t.hooks.Hook(EventFire, handler)
	return err
}

// OnCancel registers a handler called when a Timeout is cancelled
// before it fires.
func (t *Timer) OnCancel(handler func(context.Context, Event) error) error {
	_, err := t.hooks.Hook(EventCancel, handler)
	return err
}

// OnReject registers a handler called when Schedule rejects a task
// because the pending-timeout limit was reached.
func (t *Timer) OnReject(handler func(context.Context, Event) error) error {
	_, err := t.hooks.Hook(EventReject, handler)
	return err
}

// OnUnprocessed registers a handler called once per Timeout that was
// still pending (neither fired nor cancelled) when Stop collected it.
func (t *Timer) OnUnprocessed(handler func(context.Context, Event) error) error {
	_, err := t.hooks.Hook(EventUnprocessed, handler)
	return err
}
