// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

// Package main implements an echo plugin for Yana.
// It answers the echo event with its message and records every event it
// observes through its catch-all handler.
//
// Build with:
//
//	go build -o plugins/echo/echo ./plugins/echo
package main

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/yanaFramework/yanaFramework-sub012/pkg/pluginsdk"
)

var observed atomic.Int64

func echo(_ context.Context, call pluginsdk.Call) (pluginsdk.Result, error) {
	msg := call.String("message")
	if msg == "" {
		return pluginsdk.Abort(), nil
	}
	return pluginsdk.Continue(fmt.Sprintf("Echo: %s", msg)), nil
}

func observe(_ context.Context, _ pluginsdk.Call) (pluginsdk.Result, error) {
	return pluginsdk.Continue(observed.Add(1)), nil
}

func main() {
	pluginsdk.Serve(&pluginsdk.ServeConfig{
		Handler: pluginsdk.Mux{
			"echo":    echo,
			"observe": observe,
		},
	})
}
