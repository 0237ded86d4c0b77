// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

package main

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/yanaFramework/yanaFramework-sub012/internal/plugin"
)

// NewSchemaCmd creates the schema subcommand.
func NewSchemaCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the plugin.yaml JSON Schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := plugin.GenerateSchema()
			if err != nil {
				return oops.With("operation", "generate schema").Wrap(err)
			}

			if outPath == "" {
				_, err := cmd.OutOrStdout().Write(append(schema, '\n'))
				return err
			}

			if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
				return oops.With("path", outPath).Wrap(err)
			}
			if err := os.WriteFile(outPath, schema, 0o600); err != nil {
				return oops.With("path", outPath).Wrap(err)
			}
			cmd.Printf("Generated %s\n", outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write the schema to a file instead of stdout")
	return cmd
}
