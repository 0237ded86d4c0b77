// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

package plugin

import (
	"fmt"
	"strings"
)

// Type classifies plugins and events. It decides which events a catch-all
// handler is joined to; it is never used for access control.
type Type string

// Plugin and event types.
const (
	TypeDefault  Type = "default"
	TypePrimary  Type = "primary"
	TypeConfig   Type = "config"
	TypeRead     Type = "read"
	TypeWrite    Type = "write"
	TypeSecurity Type = "security"
	TypeLibrary  Type = "library"
)

// Types lists all valid types in table order.
var Types = []Type{TypeSecurity, TypeLibrary, TypePrimary, TypeDefault, TypeRead, TypeWrite, TypeConfig}

// ParseType converts a string to a Type. Matching is case-insensitive and the
// empty string yields TypeDefault.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return TypeDefault, nil
	}
	if !t.Valid() {
		return "", fmt.Errorf("unknown type %q", s)
	}
	return t, nil
}

// Valid reports whether t is one of the known types.
func (t Type) Valid() bool {
	_, ok := multicast[t]
	return ok
}

// multicast maps a plugin type to the event types its catch-all handler joins.
//
//	plugin \ event   read write config primary default security library
//	security          x    x     x      x       x       x        -
//	library           x    x     x      x       x       x        -
//	primary           x    x     -      x       -       -        -
//	default           x    x     -      -       x       -        -
//	read              x    -     -      -       -       -        -
//	write             -    x     -      -       -       -        -
//	config            -    -     x      -       -       -        -
var multicast = map[Type]map[Type]bool{
	TypeSecurity: set(TypeRead, TypeWrite, TypeConfig, TypePrimary, TypeDefault, TypeSecurity),
	TypeLibrary:  set(TypeRead, TypeWrite, TypeConfig, TypePrimary, TypeDefault, TypeSecurity),
	TypePrimary:  set(TypeRead, TypeWrite, TypePrimary),
	TypeDefault:  set(TypeRead, TypeWrite, TypeDefault),
	TypeRead:     set(TypeRead),
	TypeWrite:    set(TypeWrite),
	TypeConfig:   set(TypeConfig),
}

func set(types ...Type) map[Type]bool {
	m := make(map[Type]bool, len(types))
	for _, t := range types {
		m[t] = true
	}
	return m
}

// Joins reports whether a catch-all handler of a plugin with pluginType is
// joined to events of eventType.
func Joins(pluginType, eventType Type) bool {
	return multicast[pluginType][eventType]
}

// Activation is the default activation policy of a plugin.
type Activation string

// Activation policies.
const (
	// ActivationOff plugins stay inactive until an override enables them.
	ActivationOff Activation = "off"
	// ActivationOn plugins are active until an override disables them.
	ActivationOn Activation = "on"
	// ActivationAlways plugins are active and cannot be disabled.
	ActivationAlways Activation = "always"
)

// ParseActivation converts a string to an Activation. The empty string
// yields ActivationOn.
func ParseActivation(s string) (Activation, error) {
	switch a := Activation(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return ActivationOn, nil
	case ActivationOff, ActivationOn, ActivationAlways:
		return a, nil
	default:
		return "", fmt.Errorf("activation must be 'off', 'on' or 'always', got %q", s)
	}
}

// Runtime identifies how a plugin instance is created.
type Runtime string

// Plugin runtimes.
const (
	RuntimeLua    Runtime = "lua"
	RuntimeBinary Runtime = "binary"
	RuntimeNative Runtime = "native"
)
