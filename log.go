// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package hwheel

import (
	"fmt"

	"github.com/intuitivelabs/slog"
)

// Log is the package-wide logger, exported so callers can reconfigure
// its level the same way the rest of the intuitivelabs packages do,
// e.g.: slog.SetLevel(&hwheel.Log, slog.LWARN).
var Log slog.Log = slog.Log{
	Prefix: "hwheel: ",
	Level:  slog.LWARN,
}

// DBGon returns true if debug level logging is enabled.
func DBGon() bool {
	return Log.DBGon()
}

// WARNon returns true if warning level logging is enabled.
func WARNon() bool {
	return Log.WARNon()
}

// ERRon returns true if error level logging is enabled.
func ERRon() bool {
	return Log.ERRon()
}

// DBG logs a debug level message.
func DBG(f string, a ...interface{}) {
	Log.LLog(slog.LDBG, 1, NAME, f, a...)
}

// WARN logs a warning level message.
func WARN(f string, a ...interface{}) {
	Log.LLog(slog.LWARN, 1, NAME, f, a...)
}

// ERR logs an error level message.
func ERR(f string, a ...interface{}) {
	Log.LLog(slog.LERR, 1, NAME, f, a...)
}

// BUG logs a message about an internal consistency violation.
// It never panics: the caller decides whether to additionally surface
// a *ConsistencyError.
func BUG(f string, a ...interface{}) {
	Log.LLog(slog.LBUG, 1, NAME, f, a...)
}

// PANIC logs a message and panics. Reserved for states that indicate
// corrupted internal structures (e.g. a detached list element that
// should be linked).
func PANIC(f string, a ...interface{}) {
	Log.LLog(slog.LCRIT, 1, NAME, f, a...)
	panic(fmt.Sprintf(f, a...))
}
