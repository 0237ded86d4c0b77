// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

package goplugin

import (
	"context"
	"os/exec"

	hashiplug "github.com/hashicorp/go-plugin"

	"github.com/yanaFramework/yanaFramework-sub012/pkg/pluginsdk"
)

// HandshakeConfig is imported from pluginsdk to ensure host and plugins
// use identical configuration. Do not define locally to prevent drift.
var HandshakeConfig = pluginsdk.HandshakeConfig

// PluginMap is the map of plugins we can dispense.
var PluginMap = pluginsdk.PluginSet(nil)

// PluginClient wraps go-plugin client for testability.
type PluginClient interface {
	// Client returns the RPC client protocol.
	Client() (hashiplug.ClientProtocol, error)
	// Exited reports whether the plugin process has terminated.
	Exited() bool
	// Kill terminates the plugin process.
	Kill()
}

// ClientFactory creates plugin clients.
type ClientFactory interface {
	// NewClient creates a client for the given executable path.
	NewClient(execPath string) PluginClient
}

// DefaultClientFactory creates real go-plugin clients.
type DefaultClientFactory struct{}

// NewClient creates a real go-plugin client.
func (f *DefaultClientFactory) NewClient(execPath string) PluginClient {
	return hashiplug.NewClient(&hashiplug.ClientConfig{
		HandshakeConfig:  HandshakeConfig,
		Plugins:          PluginMap,
		Cmd:              exec.Command(execPath), // #nosec G204 -- execPath resolved from plugin manifest; manifests validated during discovery
		AllowedProtocols: []hashiplug.Protocol{hashiplug.ProtocolNetRPC},
	})
}

// remote is the host-side view of a dispensed plugin.
type remote interface {
	Handlers() ([]string, error)
	Invoke(ctx context.Context, call pluginsdk.Call) (pluginsdk.Result, error)
}

var _ remote = (*pluginsdk.RPCClient)(nil)
