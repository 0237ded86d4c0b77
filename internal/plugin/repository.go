// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

package plugin

import (
	"sort"
	"sync/atomic"
)

// ImplementationKind records how a plugin came to implement an event.
type ImplementationKind string

// Implementation kinds.
const (
	KindOwner      ImplementationKind = "owner"
	KindFanOut     ImplementationKind = "fan-out"
	KindSubscriber ImplementationKind = "subscriber"
	KindMulticast  ImplementationKind = "multicast"
)

// Implementation is one plugin invoked when an event is broadcast.
type Implementation struct {
	PluginID string
	// Method is the plugin's own handler for the event; for multicast joins
	// it is the plugin's catch-all handler.
	Method MethodDescriptor
	Kind   ImplementationKind
}

// Repository indexes plugins and events. It is never modified after Build
// returns, so it is safe for concurrent readers.
type Repository struct {
	order           []string
	plugins         map[string]*PluginDescriptor
	inactive        map[string]bool
	events          map[string]MethodDescriptor
	implementations map[string][]Implementation
}

// Plugin returns the descriptor of a recorded plugin, including inactive ones.
func (r *Repository) Plugin(id string) (*PluginDescriptor, bool) {
	if r == nil {
		return nil, false
	}
	p, ok := r.plugins[NormalizeName(id)]
	return p, ok
}

// Plugins returns all recorded plugins in scan order.
func (r *Repository) Plugins() []*PluginDescriptor {
	if r == nil {
		return nil
	}
	out := make([]*PluginDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.plugins[id])
	}
	return out
}

// Inactive reports whether the plugin was known inactive when the repository
// was built. Inactive plugins implement no events.
func (r *Repository) Inactive(id string) bool {
	if r == nil {
		return false
	}
	return r.inactive[NormalizeName(id)]
}

// Event returns the canonical method descriptor of an event.
func (r *Repository) Event(name string) (MethodDescriptor, bool) {
	if r == nil {
		return MethodDescriptor{}, false
	}
	m, ok := r.events[NormalizeName(name)]
	return m, ok
}

// Events returns all event names, sorted.
func (r *Repository) Events() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.events))
	for name := range r.events {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Implementations returns the implementers of an event in discovery order.
// The returned slice is a copy.
func (r *Repository) Implementations(event string) []Implementation {
	if r == nil {
		return nil
	}
	impls := r.implementations[NormalizeName(event)]
	out := make([]Implementation, len(impls))
	copy(out, impls)
	return out
}

// ImplementerIDs returns the plugin ids implementing an event in discovery order.
func (r *Repository) ImplementerIDs(event string) []string {
	if r == nil {
		return nil
	}
	impls := r.implementations[NormalizeName(event)]
	ids := make([]string, len(impls))
	for i, impl := range impls {
		ids[i] = impl.PluginID
	}
	return ids
}

// RepositoryStore publishes repositories. Readers always see a complete
// repository; Swap replaces it atomically.
type RepositoryStore struct {
	current atomic.Pointer[Repository]
}

// Load returns the current repository, or nil before the first build.
func (s *RepositoryStore) Load() *Repository {
	return s.current.Load()
}

// Swap publishes repo and returns the previous repository.
func (s *RepositoryStore) Swap(repo *Repository) *Repository {
	return s.current.Swap(repo)
}
