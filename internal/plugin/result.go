// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

package plugin

// Result is the outcome of one handler invocation: either the broadcast
// continues with a value, or it is aborted.
type Result struct {
	value   any
	aborted bool
}

// Continue returns a result that lets the broadcast proceed with value.
func Continue(value any) Result {
	return Result{value: value}
}

// Abort returns a result that stops the broadcast. The aggregate of an
// aborted broadcast is false.
func Abort() Result {
	return Result{aborted: true}
}

// FromValue maps a raw handler return value to a Result. Boolean false
// aborts; anything else continues.
func FromValue(v any) Result {
	if b, ok := v.(bool); ok && !b {
		return Abort()
	}
	return Continue(v)
}

// Aborted reports whether the result stops the broadcast.
func (r Result) Aborted() bool {
	return r.aborted
}

// Value returns the carried value. Aborted results report false.
func (r Result) Value() any {
	if r.aborted {
		return false
	}
	return r.value
}
