// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

package plugin

import (
	"errors"

	"github.com/samber/oops"
)

// Error codes for plugin discovery and dispatch failures.
const (
	CodeUndefinedEvent       = "UNDEFINED_EVENT"
	CodePluginReflection     = "PLUGIN_REFLECTION"
	CodeInvocationFailed     = "INVOCATION_FAILED"
	CodeBroadcastInterrupted = "BROADCAST_INTERRUPTED"
	CodePluginLoadFailed     = "PLUGIN_LOAD_FAILED"
	CodeUnknownPlugin        = "UNKNOWN_PLUGIN"
	CodeNoLoader             = "NO_LOADER"
	CodeActivationLookup     = "ACTIVATION_LOOKUP"
)

// ErrManagerClosed is returned when a closed manager is used.
var ErrManagerClosed = errors.New("plugin manager is closed")

// ErrUndefinedEvent creates an error for an event no plugin implements.
func ErrUndefinedEvent(event string) error {
	return oops.Code(CodeUndefinedEvent).
		With("event", event).
		Errorf("undefined event: %s", event)
}

// ErrPluginReflection wraps a failure to turn a plugin source into a descriptor.
func ErrPluginReflection(location string, cause error) error {
	return oops.Code(CodePluginReflection).
		With("location", location).
		Wrapf(cause, "reflect plugin")
}

// ErrInvocation wraps an error raised by a plugin handler.
func ErrInvocation(pluginID, event, method string, cause error) error {
	return oops.Code(CodeInvocationFailed).
		With("plugin", pluginID).
		With("event", event).
		With("method", method).
		Wrap(cause)
}

// ErrBroadcastInterrupted reports a broadcast stopped by its context before
// every implementer ran.
func ErrBroadcastInterrupted(event string, invoked, total int, cause error) error {
	return oops.Code(CodeBroadcastInterrupted).
		With("event", event).
		With("invoked", invoked).
		With("implementers", total).
		Wrapf(cause, "broadcast of %s interrupted", event)
}

// ErrPluginLoad wraps a loader failure.
func ErrPluginLoad(pluginID string, cause error) error {
	return oops.Code(CodePluginLoadFailed).
		With("plugin", pluginID).
		Wrap(cause)
}

// ErrUnknownPlugin creates an error for a plugin id missing from the repository.
func ErrUnknownPlugin(pluginID string) error {
	return oops.Code(CodeUnknownPlugin).
		With("plugin", pluginID).
		Errorf("unknown plugin: %s", pluginID)
}

// ErrNoLoader creates an error for a runtime without a registered loader.
func ErrNoLoader(pluginID string, runtime Runtime) error {
	return oops.Code(CodeNoLoader).
		With("plugin", pluginID).
		With("runtime", string(runtime)).
		Errorf("no loader for runtime %q", runtime)
}

// HasCode reports whether err is an oops error carrying code.
func HasCode(err error, code string) bool {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return false
	}
	return oopsErr.Code() == code
}

// IsUndefinedEvent reports whether err is an undefined event error.
func IsUndefinedEvent(err error) bool {
	return HasCode(err, CodeUndefinedEvent)
}

// IsBroadcastInterrupted reports whether err reports an interrupted broadcast.
func IsBroadcastInterrupted(err error) bool {
	return HasCode(err, CodeBroadcastInterrupted)
}
