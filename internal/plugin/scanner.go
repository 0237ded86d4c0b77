// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gobwas/glob"

	"github.com/yanaFramework/yanaFramework-sub012/pkg/errutil"
)

// Scanner discovers plugins in plugin directories. Each location is a
// directory whose sub-directories hold a plugin.yaml manifest.
type Scanner struct {
	locations []string
	exclude   []glob.Glob
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner) error

// WithExclude skips plugin directories whose name matches any of the glob
// patterns.
func WithExclude(patterns ...string) ScannerOption {
	return func(s *Scanner) error {
		for _, p := range patterns {
			g, err := glob.Compile(p)
			if err != nil {
				return fmt.Errorf("exclude pattern %q: %w", p, err)
			}
			s.exclude = append(s.exclude, g)
		}
		return nil
	}
}

// NewScanner creates a scanner over the given plugin directories, which are
// scanned in order.
func NewScanner(locations []string, opts ...ScannerOption) (*Scanner, error) {
	s := &Scanner{locations: append([]string(nil), locations...)}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Discover implements Source.
func (s *Scanner) Discover(ctx context.Context) ([]*PluginDescriptor, error) {
	return s.Scan(ctx, s.locations)
}

// Scan reads every plugin below locations, in location order then directory
// name order. Plugins that fail to parse and locations that cannot be read
// are logged and skipped; a missing location yields no plugins.
func (s *Scanner) Scan(ctx context.Context, locations []string) ([]*PluginDescriptor, error) {
	var descs []*PluginDescriptor
	for _, location := range locations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entries, err := os.ReadDir(location)
		if err != nil {
			if os.IsNotExist(err) {
				slog.Debug("plugin location does not exist", "location", location)
				continue
			}
			errutil.LogWarn(slog.Default(), "skipping plugin location",
				ErrPluginReflection(location, err))
			continue
		}

		for _, entry := range entries {
			if !entry.IsDir() || s.excluded(entry.Name()) {
				continue
			}

			dir := filepath.Join(location, entry.Name())
			desc, err := s.reflect(dir)
			if err != nil {
				errutil.LogWarn(slog.Default(), "skipping plugin", err)
				continue
			}
			descs = append(descs, desc)
		}
	}
	return descs, nil
}

func (s *Scanner) reflect(dir string) (*PluginDescriptor, error) {
	manifestPath := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(manifestPath) //nolint:gosec // manifestPath is constructed from ReadDir entries
	if err != nil {
		return nil, ErrPluginReflection(dir, err)
	}

	if err := ValidateSchema(data); err != nil {
		return nil, ErrPluginReflection(dir, err)
	}

	manifest, err := ParseManifest(data)
	if err != nil {
		return nil, ErrPluginReflection(dir, err)
	}

	desc, err := manifest.Descriptor(dir)
	if err != nil {
		return nil, ErrPluginReflection(dir, err)
	}
	return desc, nil
}

func (s *Scanner) excluded(name string) bool {
	for _, g := range s.exclude {
		if g.Match(name) {
			return true
		}
	}
	return false
}
