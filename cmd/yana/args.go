// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/yanaFramework/yanaFramework-sub012/internal/plugin"
)

// parseArgs turns key=value pairs into event arguments. Values are YAML
// scalars or flow collections, so count=3 is a number and tags=[a,b] a list.
func parseArgs(pairs []string) (plugin.Args, error) {
	args := make(plugin.Args, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, oops.Code("INVALID_ARGUMENT").
				With("argument", pair).
				Errorf("argument must have the form key=value")
		}

		var value any
		if raw != "" {
			if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
				return nil, oops.Code("INVALID_ARGUMENT").With("argument", pair).Wrap(err)
			}
		}
		if value == nil {
			value = raw
		}
		args[key] = value
	}
	return args, nil
}

// formatResult renders a result on one line.
func formatResult(res plugin.Result) string {
	if res.Aborted() {
		return "false (aborted)"
	}
	data, err := json.Marshal(res.Value())
	if err != nil {
		return fmt.Sprintf("%v", res.Value())
	}
	return string(data)
}
