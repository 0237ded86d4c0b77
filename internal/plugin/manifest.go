// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

// Package plugin discovers plugins, indexes which plugins respond to which
// events, and broadcasts events to them in priority order.
package plugin

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the file name the scanner looks for in plugin directories.
const ManifestFile = "plugin.yaml"

// Manifest represents a plugin.yaml file.
type Manifest struct {
	ID           string          `yaml:"id" json:"id"`
	Version      string          `yaml:"version" json:"version"`
	Parent       string          `yaml:"parent,omitempty" json:"parent,omitempty"`
	Type         string          `yaml:"type,omitempty" json:"type,omitempty" jsonschema:"enum=default,enum=primary,enum=config,enum=read,enum=write,enum=security,enum=library"`
	Group        string          `yaml:"group,omitempty" json:"group,omitempty"`
	Activation   string          `yaml:"activation,omitempty" json:"activation,omitempty" jsonschema:"enum=off,enum=on,enum=always"`
	Runtime      Runtime         `yaml:"runtime" json:"runtime" jsonschema:"enum=lua,enum=binary,enum=native"`
	Methods      []MethodConfig  `yaml:"methods,omitempty" json:"methods,omitempty"`
	CatchAll     *CatchAllConfig `yaml:"catch-all,omitempty" json:"catch-all,omitempty"`
	LuaPlugin    *LuaConfig      `yaml:"lua-plugin,omitempty" json:"lua-plugin,omitempty"`
	BinaryPlugin *BinaryConfig   `yaml:"binary-plugin,omitempty" json:"binary-plugin,omitempty"`
	Settings     map[string]any  `yaml:"settings,omitempty" json:"settings,omitempty"`
}

// MethodConfig declares one event handler.
type MethodConfig struct {
	Name      string `yaml:"name" json:"name"`
	Type      string `yaml:"type,omitempty" json:"type,omitempty"`
	Group     string `yaml:"group,omitempty" json:"group,omitempty"`
	Overwrite bool   `yaml:"overwrite,omitempty" json:"overwrite,omitempty"`
	Subscribe bool   `yaml:"subscribe,omitempty" json:"subscribe,omitempty"`
	Priority  int    `yaml:"priority,omitempty" json:"priority,omitempty"`
	OnSuccess string `yaml:"on-success,omitempty" json:"on-success,omitempty"`
	OnError   string `yaml:"on-error,omitempty" json:"on-error,omitempty"`
}

// CatchAllConfig declares the plugin's default handler.
type CatchAllConfig struct {
	Name     string `yaml:"name" json:"name"`
	Priority int    `yaml:"priority,omitempty" json:"priority,omitempty"`
}

// LuaConfig holds Lua-specific configuration.
type LuaConfig struct {
	Entry string `yaml:"entry" json:"entry"`
}

// BinaryConfig holds binary plugin configuration.
type BinaryConfig struct {
	Executable string `yaml:"executable" json:"executable"`
}

// ParseManifest parses and validates a plugin.yaml file.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("manifest data is empty")
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks manifest constraints that do not depend on method
// resolution. Descriptor performs the remaining checks.
func (m *Manifest) Validate() error {
	if err := ValidateName(m.ID); err != nil {
		return fmt.Errorf("id: %w", err)
	}

	if m.Version == "" {
		return fmt.Errorf("version is required")
	}
	if _, err := semver.NewVersion(m.Version); err != nil {
		return fmt.Errorf("version %q is not a semantic version: %w", m.Version, err)
	}

	switch m.Runtime {
	case RuntimeLua:
		if m.LuaPlugin == nil || m.LuaPlugin.Entry == "" {
			return fmt.Errorf("lua-plugin.entry is required when runtime is lua")
		}
	case RuntimeBinary:
		if m.BinaryPlugin == nil || m.BinaryPlugin.Executable == "" {
			return fmt.Errorf("binary-plugin.executable is required when runtime is binary")
		}
	case RuntimeNative:
	default:
		return fmt.Errorf("runtime must be 'lua', 'binary' or 'native', got %q", m.Runtime)
	}

	if len(m.Methods) == 0 && m.CatchAll == nil {
		return fmt.Errorf("plugin %s declares no methods and no catch-all", m.ID)
	}

	return nil
}

// Descriptor converts the manifest into a PluginDescriptor located at dir.
func (m *Manifest) Descriptor(dir string) (*PluginDescriptor, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	pluginType, err := ParseType(m.Type)
	if err != nil {
		return nil, err
	}
	activation, err := ParseActivation(m.Activation)
	if err != nil {
		return nil, err
	}

	base := PluginDescriptor{
		ID:         m.ID,
		Parent:     m.Parent,
		Type:       pluginType,
		Group:      m.Group,
		Activation: activation,
		Runtime:    m.Runtime,
		Version:    m.Version,
		Location:   dir,
		settings:   m.Settings,
	}
	switch m.Runtime {
	case RuntimeLua:
		base.Entry = m.LuaPlugin.Entry
	case RuntimeBinary:
		base.Entry = m.BinaryPlugin.Executable
	}

	methods := make([]MethodDescriptor, 0, len(m.Methods))
	for _, mc := range m.Methods {
		var methodType Type
		if mc.Type != "" {
			if methodType, err = ParseType(mc.Type); err != nil {
				return nil, fmt.Errorf("method %s: %w", mc.Name, err)
			}
		}
		methods = append(methods, MethodDescriptor{
			Name:      mc.Name,
			Type:      methodType,
			Group:     mc.Group,
			Overwrite: mc.Overwrite,
			Subscribe: mc.Subscribe,
			Priority:  mc.Priority,
			OnSuccess: mc.OnSuccess,
			OnError:   mc.OnError,
		})
	}

	var catchAll *MethodDescriptor
	if m.CatchAll != nil {
		catchAll = &MethodDescriptor{
			Name:     m.CatchAll.Name,
			Priority: m.CatchAll.Priority,
		}
	}

	return newPluginDescriptor(base, methods, catchAll)
}
