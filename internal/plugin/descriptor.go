// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

package plugin

import (
	"fmt"
	"regexp"
	"strings"
)

// maxNameLength is the maximum allowed length for plugin ids and event names.
const maxNameLength = 64

// identPattern validates plugin ids and event names: letters, digits and
// underscores, not starting with a digit.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// NormalizeName lower-cases and trims a plugin id or event name.
// Ids and event names are case-insensitive.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateName checks that name is a usable plugin id or event name.
func ValidateName(name string) error {
	if name == "" || !identPattern.MatchString(name) {
		return fmt.Errorf("name %q must contain only letters, digits and underscores and not start with a digit", name)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("name must be %d characters or less, got %d", maxNameLength, len(name))
	}
	return nil
}

// MethodDescriptor describes one operation a plugin exposes for an event.
type MethodDescriptor struct {
	// Name is the normalized event name.
	Name string
	// PluginID is the declaring plugin.
	PluginID string
	Type     Type
	// Group restricts catch-all joining; empty matches any group.
	Group string
	// Overwrite replaces the parent plugin's implementation of the event.
	Overwrite bool
	// Subscribe attaches the method to an event owned by another plugin.
	Subscribe bool
	// CatchAll marks the plugin-level default handler.
	CatchAll bool
	// Priority orders implementers, larger runs first.
	Priority  int
	OnSuccess string
	OnError   string
}

// Validate checks the method invariants.
func (m MethodDescriptor) Validate() error {
	if err := ValidateName(m.Name); err != nil {
		return fmt.Errorf("method: %w", err)
	}
	if !m.Type.Valid() {
		return fmt.Errorf("method %s: unknown type %q", m.Name, m.Type)
	}
	if m.Overwrite && m.Subscribe {
		return fmt.Errorf("method %s: cannot both overwrite and subscribe", m.Name)
	}
	if m.CatchAll && (m.Overwrite || m.Subscribe) {
		return fmt.Errorf("method %s: catch-all cannot overwrite or subscribe", m.Name)
	}
	for _, next := range []string{m.OnSuccess, m.OnError} {
		if next == "" {
			continue
		}
		if err := ValidateName(next); err != nil {
			return fmt.Errorf("method %s: next event: %w", m.Name, err)
		}
	}
	return nil
}

// PluginDescriptor describes one plugin. It is immutable once constructed;
// a rescan produces new descriptors.
type PluginDescriptor struct {
	ID         string
	Parent     string
	Type       Type
	Group      string
	Activation Activation
	Runtime    Runtime
	Version    string
	// Location is the directory the plugin was discovered in. Empty for
	// compiled-in plugins.
	Location string
	// Entry is the runtime entry point (Lua source file or executable).
	Entry    string
	settings map[string]any

	methods  []MethodDescriptor
	index    map[string]int
	catchAll int
}

// ActiveByDefault reports whether the plugin is always active. Such plugins
// cannot be disabled by runtime overrides.
func (p *PluginDescriptor) ActiveByDefault() bool {
	return p.Activation == ActivationAlways
}

// Methods returns the named methods in declaration order, excluding the
// catch-all handler.
func (p *PluginDescriptor) Methods() []MethodDescriptor {
	out := make([]MethodDescriptor, 0, len(p.methods))
	for i, m := range p.methods {
		if i == p.catchAll {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Method returns the named method for event.
func (p *PluginDescriptor) Method(event string) (MethodDescriptor, bool) {
	i, ok := p.index[NormalizeName(event)]
	if !ok || i == p.catchAll {
		return MethodDescriptor{}, false
	}
	return p.methods[i], true
}

// CatchAll returns the plugin's catch-all handler, if it declares one.
func (p *PluginDescriptor) CatchAll() (MethodDescriptor, bool) {
	if p.catchAll < 0 {
		return MethodDescriptor{}, false
	}
	return p.methods[p.catchAll], true
}

// Setting returns a plugin setting declared in its manifest.
func (p *PluginDescriptor) Setting(key string) (any, bool) {
	v, ok := p.settings[key]
	return v, ok
}

// Settings returns a copy of the plugin settings.
func (p *PluginDescriptor) Settings() map[string]any {
	out := make(map[string]any, len(p.settings))
	for k, v := range p.settings {
		out[k] = v
	}
	return out
}

// newPluginDescriptor validates and assembles a descriptor. Method names and
// the plugin id are normalized; methods inherit the plugin type and group
// when they do not declare their own.
func newPluginDescriptor(base PluginDescriptor, methods []MethodDescriptor, catchAll *MethodDescriptor) (*PluginDescriptor, error) {
	if err := ValidateName(base.ID); err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}
	base.ID = NormalizeName(base.ID)
	if base.Parent != "" {
		if err := ValidateName(base.Parent); err != nil {
			return nil, fmt.Errorf("parent: %w", err)
		}
		base.Parent = NormalizeName(base.Parent)
		if base.Parent == base.ID {
			return nil, fmt.Errorf("plugin %s cannot be its own parent", base.ID)
		}
	}
	if base.Type == "" {
		base.Type = TypeDefault
	}
	if !base.Type.Valid() {
		return nil, fmt.Errorf("unknown type %q", base.Type)
	}
	if base.Activation == "" {
		base.Activation = ActivationOn
	}

	d := &base
	d.index = make(map[string]int, len(methods)+1)
	d.catchAll = -1

	add := func(m MethodDescriptor) error {
		m.Name = NormalizeName(m.Name)
		m.PluginID = d.ID
		if m.Type == "" {
			m.Type = d.Type
		}
		if m.Group == "" {
			m.Group = d.Group
		}
		m.OnSuccess = NormalizeName(m.OnSuccess)
		m.OnError = NormalizeName(m.OnError)
		if err := m.Validate(); err != nil {
			return err
		}
		if _, dup := d.index[m.Name]; dup {
			return fmt.Errorf("method %s declared twice", m.Name)
		}
		d.index[m.Name] = len(d.methods)
		d.methods = append(d.methods, m)
		return nil
	}

	for _, m := range methods {
		m.CatchAll = false
		if err := add(m); err != nil {
			return nil, err
		}
	}
	if catchAll != nil {
		m := *catchAll
		m.CatchAll = true
		m.Overwrite, m.Subscribe = false, false
		if err := add(m); err != nil {
			return nil, fmt.Errorf("catch-all: %w", err)
		}
		d.catchAll = len(d.methods) - 1
	}
	return d, nil
}
