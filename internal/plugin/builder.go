// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

package plugin

import (
	"log/slog"
	"strings"
)

// Status is the activation state of a plugin as known at build time.
type Status int

// Build-time activation states.
const (
	StatusUnknown Status = iota
	StatusActive
	StatusInactive
)

// StatusFunc reports the known activation state of a plugin id.
type StatusFunc func(id string) Status

// supersede records a parent implementation replaced by an overwriting method.
type supersede struct {
	parent string
	by     MethodDescriptor
}

// Build reduces descriptors, in scan order, into a Repository.
//
// Ownership: the first method seen for an event owns it unless a later method
// sets Overwrite, which takes ownership and removes the declaring plugin's
// parent from the event's implementers. Other implementers fan out without
// owning. Subscribers are appended after all owners are known, then every
// catch-all handler is joined to the events its plugin type and group reach.
//
// Plugins that status reports inactive, or whose activation is off with no
// known status, are recorded but contribute no implementations. Build never
// modifies its input and the same input always yields an equal Repository.
func Build(descs []*PluginDescriptor, status StatusFunc) *Repository {
	r := &Repository{
		plugins:         make(map[string]*PluginDescriptor, len(descs)),
		inactive:        make(map[string]bool),
		events:          make(map[string]MethodDescriptor),
		implementations: make(map[string][]Implementation),
	}

	active := make([]*PluginDescriptor, 0, len(descs))
	for _, d := range descs {
		if d == nil {
			continue
		}
		if existing, dup := r.plugins[d.ID]; dup {
			slog.Warn("duplicate plugin id, keeping first",
				"plugin", d.ID,
				"kept", existing.Location,
				"dropped", d.Location)
			continue
		}
		r.plugins[d.ID] = d
		r.order = append(r.order, d.ID)

		if !buildActive(d, status) {
			r.inactive[d.ID] = true
			continue
		}
		active = append(active, d)
	}

	supersedes := r.registerOwners(active)
	r.registerSubscribers(active)
	r.joinCatchAll(active)
	r.applySupersedes(supersedes)
	r.markOwners()

	return r
}

func buildActive(d *PluginDescriptor, status StatusFunc) bool {
	if d.ActiveByDefault() {
		return true
	}
	st := StatusUnknown
	if status != nil {
		st = status(d.ID)
	}
	switch st {
	case StatusActive:
		return true
	case StatusInactive:
		return false
	default:
		return d.Activation != ActivationOff
	}
}

func (r *Repository) registerOwners(active []*PluginDescriptor) []supersede {
	var supersedes []supersede
	for _, d := range active {
		for _, m := range d.Methods() {
			if m.Subscribe {
				continue
			}
			if _, owned := r.events[m.Name]; !owned || m.Overwrite {
				r.events[m.Name] = m
			}
			if m.Overwrite && d.Parent != "" {
				supersedes = append(supersedes, supersede{parent: d.Parent, by: m})
			}
			r.implementations[m.Name] = append(r.implementations[m.Name], Implementation{
				PluginID: d.ID,
				Method:   m,
				Kind:     KindFanOut,
			})
		}
	}
	return supersedes
}

func (r *Repository) registerSubscribers(active []*PluginDescriptor) {
	for _, d := range active {
		for _, m := range d.Methods() {
			if !m.Subscribe {
				continue
			}
			if _, owned := r.events[m.Name]; !owned {
				slog.Warn("subscriber to event without owner ignored",
					"plugin", d.ID,
					"event", m.Name)
				continue
			}
			if r.implements(m.Name, d.ID) {
				continue
			}
			r.implementations[m.Name] = append(r.implementations[m.Name], Implementation{
				PluginID: d.ID,
				Method:   m,
				Kind:     KindSubscriber,
			})
		}
	}
}

func (r *Repository) joinCatchAll(active []*PluginDescriptor) {
	events := r.Events()
	for _, d := range active {
		catchAll, ok := d.CatchAll()
		if !ok {
			continue
		}
		for _, event := range events {
			owner := r.events[event]
			if owner.Group != "" && d.Group != "" && !strings.EqualFold(owner.Group, d.Group) {
				continue
			}
			if !Joins(d.Type, owner.Type) {
				continue
			}
			if r.implements(event, d.ID) {
				continue
			}
			r.implementations[event] = append(r.implementations[event], Implementation{
				PluginID: d.ID,
				Method:   catchAll,
				Kind:     KindMulticast,
			})
		}
	}
}

// applySupersedes removes overwritten parents. If the parent ended up owning
// the event, ownership moves to the overwriting method.
func (r *Repository) applySupersedes(supersedes []supersede) {
	for _, s := range supersedes {
		event := s.by.Name
		impls := r.implementations[event]
		kept := impls[:0:0]
		for _, impl := range impls {
			if impl.PluginID != s.parent {
				kept = append(kept, impl)
			}
		}
		r.implementations[event] = kept
		if r.events[event].PluginID == s.parent {
			r.events[event] = s.by
		}
	}
}

func (r *Repository) markOwners() {
	for event, impls := range r.implementations {
		owner := r.events[event].PluginID
		for i := range impls {
			if impls[i].Kind == KindFanOut && impls[i].PluginID == owner {
				impls[i].Kind = KindOwner
			}
		}
	}
}

func (r *Repository) implements(event, pluginID string) bool {
	for _, impl := range r.implementations[event] {
		if impl.PluginID == pluginID {
			return true
		}
	}
	return false
}
