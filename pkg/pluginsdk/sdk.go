// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

// Package pluginsdk provides the SDK for building Yana binary plugins.
//
// Binary plugins run as child processes of the host and talk to it over
// net/rpc using the HashiCorp go-plugin framework. Arguments and return
// values cross the process boundary as JSON.
//
// Example usage:
//
//	package main
//
//	import (
//		"context"
//		"github.com/yanaFramework/yanaFramework-sub012/pkg/pluginsdk"
//	)
//
//	func main() {
//		pluginsdk.Serve(&pluginsdk.ServeConfig{
//			Handler: pluginsdk.Mux{
//				"greet": func(_ context.Context, call pluginsdk.Call) (pluginsdk.Result, error) {
//					return pluginsdk.Continue("hello " + call.String("name")), nil
//				},
//			},
//		})
//	}
package pluginsdk

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	hashiplug "github.com/hashicorp/go-plugin"
)

// PluginName is the name under which the handler is dispensed.
const PluginName = "handler"

// HandshakeConfig is the go-plugin handshake configuration.
// Both host and plugins must use the same values.
var HandshakeConfig = hashiplug.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "YANA_PLUGIN",
	MagicCookieValue: "yana-v1",
}

// Call describes one handler invocation.
type Call struct {
	// Event is the broadcast event name.
	Event string
	// Method is the handler being invoked. It differs from Event when the
	// plugin's catch-all handler runs.
	Method string
	Args   map[string]any
}

// String returns the named argument as a string, or "" when it is missing
// or not a string.
func (c Call) String(key string) string {
	s, _ := c.Args[key].(string)
	return s
}

// Result is a handler outcome.
type Result struct {
	Value any
	Abort bool
}

// Continue lets the broadcast proceed with value.
func Continue(value any) Result {
	return Result{Value: value}
}

// Abort stops the broadcast.
func Abort() Result {
	return Result{Abort: true}
}

// Handler is the interface that binary plugins must implement.
type Handler interface {
	// Handlers lists the method names the plugin can handle.
	Handlers() []string
	// Invoke runs one handler.
	Invoke(ctx context.Context, call Call) (Result, error)
}

// HandlerFunc handles one method.
type HandlerFunc func(ctx context.Context, call Call) (Result, error)

// Mux is a Handler dispatching on the method name. Names are matched
// case-insensitively.
type Mux map[string]HandlerFunc

// Handlers implements Handler.
func (m Mux) Handlers() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, strings.ToLower(name))
	}
	sort.Strings(names)
	return names
}

// Invoke implements Handler.
func (m Mux) Invoke(ctx context.Context, call Call) (Result, error) {
	for name, fn := range m {
		if strings.EqualFold(name, call.Method) {
			return fn(ctx, call)
		}
	}
	return Result{}, fmt.Errorf("pluginsdk: no handler for %q", call.Method)
}

// ServeConfig configures the plugin server.
type ServeConfig struct {
	// Handler is the plugin implementation.
	// Required; Serve will panic if nil.
	Handler Handler
}

// Serve starts the plugin server. This should be called from main().
// It blocks and never returns under normal operation.
func Serve(config *ServeConfig) {
	if config == nil {
		panic("pluginsdk: config cannot be nil")
	}
	if config.Handler == nil {
		panic("pluginsdk: config.Handler cannot be nil")
	}
	hashiplug.Serve(&hashiplug.ServeConfig{
		HandshakeConfig: HandshakeConfig,
		Plugins:         PluginSet(config.Handler),
	})
}

// PluginSet returns the plugin map served by plugins and dispensed by the
// host. The host passes a nil handler.
func PluginSet(h Handler) hashiplug.PluginSet {
	return hashiplug.PluginSet{
		PluginName: &HandlerPlugin{Impl: h},
	}
}

// errNilHandler is returned when a plugin is served without an implementation.
var errNilHandler = errors.New("pluginsdk: handler is nil")
