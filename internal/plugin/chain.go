// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

package plugin

import (
	"context"
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

func newChainID() ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
}

// Chain is the state of one call chain: the events sent while handling one
// external request, and the plugin instances created for them. A chain
// belongs to a single logical flow and is never shared between requests.
type Chain struct {
	id ulid.ULID

	mu         sync.Mutex
	first      string
	last       string
	lastOwner  MethodDescriptor
	lastResult Result
	sent       bool
	instances  map[string]Instance
}

// NewChain starts an empty call chain.
func NewChain() *Chain {
	return &Chain{
		id:        newChainID(),
		instances: make(map[string]Instance),
	}
}

// ID returns the chain id.
func (c *Chain) ID() ulid.ULID {
	return c.id
}

// FirstEvent returns the first event sent in the chain.
func (c *Chain) FirstEvent() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.first
}

// LastEvent returns the most recent event sent in the chain.
func (c *Chain) LastEvent() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// LastResult returns the aggregate of the most recent broadcast. ok is false
// before the first broadcast completes.
func (c *Chain) LastResult() (result Result, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastResult, c.sent
}

// NextEvent returns the event configured to follow the last one: the
// owner's on-success event when the last broadcast was not aborted, its
// on-error event otherwise. ok is false when nothing follows.
func (c *Chain) NextEvent() (event string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.sent {
		return "", false
	}
	next := c.lastOwner.OnSuccess
	if c.lastResult.Aborted() {
		next = c.lastOwner.OnError
	}
	return next, next != ""
}

// begin notes that event is being sent. The first event of the chain is
// fixed here, before any nested send made while handling it.
func (c *Chain) begin(event string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.first == "" {
		c.first = event
	}
}

// record stores the outcome of a broadcast.
func (c *Chain) record(owner MethodDescriptor, result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = owner.Name
	c.lastOwner = owner
	c.lastResult = result
	c.sent = true
}

func (c *Chain) instance(pluginID string) (Instance, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inst, ok := c.instances[pluginID]
	return inst, ok
}

func (c *Chain) remember(pluginID string, inst Instance) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.instances[pluginID] = inst
}

// Close releases the instances created for the chain.
func (c *Chain) Close() error {
	c.mu.Lock()
	instances := c.instances
	c.instances = make(map[string]Instance)
	c.mu.Unlock()

	var errs []error
	for _, inst := range instances {
		if closer, ok := inst.(Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

type chainKey struct{}

// WithChain returns a context carrying chain.
func WithChain(ctx context.Context, chain *Chain) context.Context {
	return context.WithValue(ctx, chainKey{}, chain)
}

// ChainFromContext returns the chain carried by ctx, or nil.
func ChainFromContext(ctx context.Context) *Chain {
	c, _ := ctx.Value(chainKey{}).(*Chain)
	return c
}
