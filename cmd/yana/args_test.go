// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanaFramework/yanaFramework-sub012/internal/plugin"
	"github.com/yanaFramework/yanaFramework-sub012/pkg/errutil"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    plugin.Args
		wantErr bool
	}{
		{name: "none", pairs: nil, want: plugin.Args{}},
		{name: "string", pairs: []string{"key=a"}, want: plugin.Args{"key": "a"}},
		{name: "number", pairs: []string{"count=3"}, want: plugin.Args{"count": 3}},
		{name: "bool", pairs: []string{"force=true"}, want: plugin.Args{"force": true}},
		{name: "list", pairs: []string{"tags=[a,b]"}, want: plugin.Args{"tags": []any{"a", "b"}}},
		{name: "empty value", pairs: []string{"key="}, want: plugin.Args{"key": ""}},
		{name: "value containing equals", pairs: []string{"expr=a=b"}, want: plugin.Args{"expr": "a=b"}},
		{name: "missing equals", pairs: []string{"key"}, wantErr: true},
		{name: "missing key", pairs: []string{"=value"}, wantErr: true},
		{name: "malformed flow value", pairs: []string{"tags=[a"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseArgs(tt.pairs)

			if tt.wantErr {
				errutil.AssertErrorCode(t, err, "INVALID_ARGUMENT")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatResult(t *testing.T) {
	assert.Equal(t, "false (aborted)", formatResult(plugin.Abort()))
	assert.Equal(t, `"a"`, formatResult(plugin.Continue("a")))
	assert.Equal(t, "null", formatResult(plugin.Continue(nil)))
	assert.Equal(t, `{"n":1}`, formatResult(plugin.Continue(map[string]any{"n": 1})))
}
