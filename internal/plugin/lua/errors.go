// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

package lua

import "errors"

var (
	errNoHandler = errors.New("plugin has no such handler")
	errClosed    = errors.New("plugin instance is closed")
)
