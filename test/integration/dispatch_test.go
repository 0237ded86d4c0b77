// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/yanaFramework/yanaFramework-sub012/internal/plugin"
	"github.com/yanaFramework/yanaFramework-sub012/internal/plugin/builtin"
	"github.com/yanaFramework/yanaFramework-sub012/internal/plugin/lua"
	"github.com/yanaFramework/yanaFramework-sub012/internal/plugin/native"
	"github.com/yanaFramework/yanaFramework-sub012/internal/store"
)

// samplePlugins is the repository's plugin directory.
const samplePlugins = "../../plugins"

// writePlugin creates a Lua plugin below dir.
func writePlugin(dir, id, manifest, source string) {
	pluginDir := filepath.Join(dir, id)
	Expect(os.MkdirAll(pluginDir, 0o750)).To(Succeed())
	Expect(os.WriteFile(filepath.Join(pluginDir, plugin.ManifestFile), []byte(manifest), 0o600)).To(Succeed())
	Expect(os.WriteFile(filepath.Join(pluginDir, "main.lua"), []byte(source), 0o600)).To(Succeed())
}

// newManager builds a manager over the builtin plugins and the given plugin
// directories, and publishes its first repository.
func newManager(ctx context.Context, overrides plugin.OverrideStore, dirs ...string) *plugin.Manager {
	registry := native.NewRegistry()
	Expect(builtin.Register(registry)).To(Succeed())

	scanner, err := plugin.NewScanner(dirs, plugin.WithExclude("echo"))
	Expect(err).NotTo(HaveOccurred())

	m := plugin.NewManager(
		plugin.WithSource(registry),
		plugin.WithSource(scanner),
		plugin.WithLoader(plugin.RuntimeNative, registry),
		plugin.WithLoader(plugin.RuntimeLua, lua.NewLoader()),
		plugin.WithOverrides(overrides),
		plugin.WithBroadcastTimeout(5*time.Second),
	)
	_, err = m.Rebuild(ctx)
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(func() {
		Expect(m.Close(context.Background())).To(Succeed())
	})
	return m
}

var _ = Describe("Dispatching to the sample plugins", func() {
	var (
		ctx       context.Context
		overrides *store.MemoryOverrides
		m         *plugin.Manager
	)

	BeforeEach(func() {
		ctx = context.Background()
		overrides = store.NewMemoryOverrides(nil)
		m = newManager(ctx, overrides, samplePlugins)
	})

	It("indexes owners and catch-all joins", func() {
		repo := m.Repository()
		Expect(repo.ImplementerIDs("save")).To(Equal([]string{"core", "audit"}))
		Expect(repo.ImplementerIDs("ping")).To(Equal([]string{"system", "audit"}))

		owner, ok := repo.Event("save")
		Expect(ok).To(BeTrue())
		Expect(owner.OnSuccess).To(Equal("saved"))
		Expect(owner.OnError).To(Equal("save_failed"))
	})

	It("keeps plugin state for the length of one call chain", func() {
		chain := plugin.NewChain()
		DeferCleanup(chain.Close)
		chainCtx := plugin.WithChain(ctx, chain)

		v, err := m.SendEvent(chainCtx, "save", plugin.Args{"key": "a", "value": "one"})
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal("a"))

		next, ok := m.NextEvent(chainCtx)
		Expect(ok).To(BeTrue())
		Expect(next).To(Equal("saved"))

		v, err = m.SendEvent(chainCtx, next, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(1))

		v, err = m.SendEvent(chainCtx, "load", plugin.Args{"key": "a"})
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal("one"))

		By("starting a fresh chain")
		v, err = m.SendEvent(ctx, "load", plugin.Args{"key": "a"})
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(BeNil())
	})

	It("routes aborted events to their error event", func() {
		chain := plugin.NewChain()
		DeferCleanup(chain.Close)
		chainCtx := plugin.WithChain(ctx, chain)

		v, err := m.SendEvent(chainCtx, "save", plugin.Args{})
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(BeFalse())

		next, ok := m.NextEvent(chainCtx)
		Expect(ok).To(BeTrue())
		Expect(next).To(Equal("save_failed"))
	})

	It("applies configured settings over manifest settings", func() {
		limited := plugin.NewManager(
			plugin.WithSource(mustScanner(samplePlugins)),
			plugin.WithLoader(plugin.RuntimeLua, lua.NewLoader()),
			plugin.WithPluginSettings("core", map[string]any{"max_records": 1}),
		)
		_, err := limited.Rebuild(ctx)
		Expect(err).NotTo(HaveOccurred())

		chain := plugin.NewChain()
		DeferCleanup(chain.Close)
		chainCtx := plugin.WithChain(ctx, chain)

		v, err := limited.SendEvent(chainCtx, "save", plugin.Args{"key": "a"})
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal("a"))

		v, err = limited.SendEvent(chainCtx, "save", plugin.Args{"key": "b"})
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(BeFalse())
	})

	It("stops invoking a disabled plugin", func() {
		Expect(m.SetActive(ctx, "audit", false)).To(Succeed())

		v, err := m.SendEvent(ctx, "plugins", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(HaveKeyWithValue("audit", false))
		Expect(v).To(HaveKeyWithValue("core", true))

		active, found, err := overrides.Lookup(ctx, "audit")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
		Expect(active).To(BeFalse())
	})

	It("refuses to disable an always-active plugin", func() {
		Expect(m.SetActive(ctx, "core", false)).To(MatchError(ContainSubstring("always active")))
	})
})

var _ = Describe("Extending the sample plugins", func() {
	var (
		ctx   context.Context
		extra string
	)

	BeforeEach(func() {
		ctx = context.Background()
		extra = GinkgoT().TempDir()
	})

	It("lets an overwriting child replace its parent", func() {
		writePlugin(extra, "fastcore", `
id: fastcore
version: 1.0.0
parent: core
type: primary
runtime: lua
lua-plugin:
  entry: main.lua
methods:
  - name: load
    overwrite: true
`, `
function load(args)
  return "cached:" .. args.key
end
`)
		m := newManager(ctx, store.NewMemoryOverrides(nil), samplePlugins, extra)

		Expect(m.Repository().ImplementerIDs("load")).To(Equal([]string{"fastcore", "audit"}))
		v, err := m.SendEvent(ctx, "load", plugin.Args{"key": "a"})
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal("cached:a"))
	})

	It("invokes subscribers after the owner and lets them replace the value", func() {
		writePlugin(extra, "shout", `
id: shout
version: 1.0.0
runtime: lua
lua-plugin:
  entry: main.lua
methods:
  - name: save
    subscribe: true
    priority: 1
`, `
function save(args)
  return string.upper(args.key)
end
`)
		m := newManager(ctx, store.NewMemoryOverrides(nil), samplePlugins, extra)

		Expect(m.Repository().ImplementerIDs("save")).To(Equal([]string{"core", "shout", "audit"}))
		v, err := m.SendEvent(ctx, "save", plugin.Args{"key": "a"})
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal("A"))
	})

	It("registers an off-by-default plugin once it is enabled", func() {
		writePlugin(extra, "greeter", `
id: greeter
version: 1.0.0
runtime: lua
activation: "off"
lua-plugin:
  entry: main.lua
methods:
  - name: greet
`, `
function greet(args)
  return "hello " .. (args.name or "world")
end
`)
		m := newManager(ctx, store.NewMemoryOverrides(nil), samplePlugins, extra)

		_, err := m.SendEvent(ctx, "greet", nil)
		Expect(plugin.IsUndefinedEvent(err)).To(BeTrue())

		Expect(m.SetActive(ctx, "greeter", true)).To(Succeed())

		v, err := m.SendEvent(ctx, "greet", plugin.Args{"name": "yana"})
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal("hello yana"))
	})

	It("lets a plugin send nested events in its own chain", func() {
		writePlugin(extra, "batch", `
id: batch
version: 1.0.0
runtime: lua
lua-plugin:
  entry: main.lua
methods:
  - name: save_all
`, `
function save_all(args)
  yana.send("save", {key = "x"})
  yana.send("save", {key = "y"})
  return yana.send("saved", {})
end
`)
		m := newManager(ctx, store.NewMemoryOverrides(nil), samplePlugins, extra)

		v, err := m.SendEvent(ctx, "save_all", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(2))
	})
})

func mustScanner(dirs ...string) *plugin.Scanner {
	s, err := plugin.NewScanner(dirs, plugin.WithExclude("echo"))
	Expect(err).NotTo(HaveOccurred())
	return s
}
