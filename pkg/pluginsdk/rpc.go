// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

package pluginsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/rpc"

	hashiplug "github.com/hashicorp/go-plugin"
)

// HandlerPlugin implements go-plugin's Plugin interface over net/rpc.
type HandlerPlugin struct {
	// Impl is used by the plugin side only.
	Impl Handler
}

// Server returns the RPC server (called by plugin process).
func (p *HandlerPlugin) Server(*hashiplug.MuxBroker) (interface{}, error) {
	if p.Impl == nil {
		return nil, errNilHandler
	}
	return &RPCServer{Impl: p.Impl}, nil
}

// Client returns the RPC client (called by host process).
func (p *HandlerPlugin) Client(_ *hashiplug.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &RPCClient{client: c}, nil
}

// InvokeRequest is the wire form of a Call. Args are JSON encoded.
type InvokeRequest struct {
	Event  string
	Method string
	Args   []byte
}

// InvokeResponse is the wire form of a Result. Value is JSON encoded.
type InvokeResponse struct {
	Value []byte
	Abort bool
}

// RPCServer exposes a Handler over net/rpc.
type RPCServer struct {
	Impl Handler
}

// Handlers lists the plugin's handler names.
func (s *RPCServer) Handlers(_ interface{}, resp *[]string) error {
	*resp = s.Impl.Handlers()
	return nil
}

// Invoke runs one handler.
func (s *RPCServer) Invoke(req InvokeRequest, resp *InvokeResponse) error {
	var args map[string]any
	if len(req.Args) > 0 {
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return fmt.Errorf("decode args: %w", err)
		}
	}

	res, err := s.Impl.Invoke(context.Background(), Call{
		Event:  req.Event,
		Method: req.Method,
		Args:   args,
	})
	if err != nil {
		return err
	}

	resp.Abort = res.Abort
	if res.Abort {
		return nil
	}
	value, err := json.Marshal(res.Value)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	resp.Value = value
	return nil
}

// RPCClient is the host-side view of a plugin served over net/rpc.
type RPCClient struct {
	client *rpc.Client
}

// Handlers asks the plugin for its handler names.
func (c *RPCClient) Handlers() ([]string, error) {
	var resp []string
	if err := c.client.Call("Plugin.Handlers", new(interface{}), &resp); err != nil {
		return nil, fmt.Errorf("list handlers: %w", err)
	}
	return resp, nil
}

// Invoke runs one handler in the plugin process. net/rpc carries no
// deadline, so the call is abandoned when ctx is done.
func (c *RPCClient) Invoke(ctx context.Context, call Call) (Result, error) {
	args, err := json.Marshal(call.Args)
	if err != nil {
		return Result{}, fmt.Errorf("encode args: %w", err)
	}

	var resp InvokeResponse
	pending := c.client.Go("Plugin.Invoke", InvokeRequest{
		Event:  call.Event,
		Method: call.Method,
		Args:   args,
	}, &resp, make(chan *rpc.Call, 1))

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case done := <-pending.Done:
		if done.Error != nil {
			return Result{}, done.Error
		}
	}

	if resp.Abort {
		return Abort(), nil
	}
	var value any
	if len(resp.Value) > 0 {
		if err := json.Unmarshal(resp.Value, &value); err != nil {
			return Result{}, fmt.Errorf("decode result: %w", err)
		}
	}
	return Continue(value), nil
}
