// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Manager is the entry point of the plugin system. It rebuilds the
// repository from its sources, and sends events to the active implementers
// through the dispatcher.
type Manager struct {
	sources    []Source
	loaders    map[Runtime]Loader
	overrides  OverrideStore
	oracle     ActivationOracle
	activation *OverrideOracle
	dispatcher *Dispatcher
	settings   map[string]map[string]any
	timeout    time.Duration
	logger     *slog.Logger

	repos     RepositoryStore
	rebuildMu sync.Mutex
	closed    atomic.Bool
}

// Compile-time interface check.
var _ Sender = (*Manager)(nil)

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithSource adds a plugin source. Sources are scanned in the order added.
func WithSource(s Source) ManagerOption {
	return func(m *Manager) {
		m.sources = append(m.sources, s)
	}
}

// WithLoader sets the loader for a runtime.
func WithLoader(rt Runtime, l Loader) ManagerOption {
	return func(m *Manager) {
		m.loaders[rt] = l
	}
}

// WithOverrides sets the activation override store used by the default
// activation oracle.
func WithOverrides(store OverrideStore) ManagerOption {
	return func(m *Manager) {
		m.overrides = store
	}
}

// WithOracle replaces the default activation oracle.
func WithOracle(o ActivationOracle) ManagerOption {
	return func(m *Manager) {
		m.oracle = o
	}
}

// WithPluginSettings overlays configured settings on a plugin's manifest
// settings.
func WithPluginSettings(pluginID string, settings map[string]any) ManagerOption {
	return func(m *Manager) {
		m.settings[NormalizeName(pluginID)] = settings
	}
}

// WithBroadcastTimeout bounds every broadcast. Zero disables the bound.
func WithBroadcastTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.timeout = d
	}
}

// WithLogger sets the logger handed to plugins.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a plugin manager. The repository is empty until
// Rebuild is called.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		loaders:    make(map[Runtime]Loader),
		settings:   make(map[string]map[string]any),
		dispatcher: NewDispatcher(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.oracle == nil {
		m.activation = NewOverrideOracle(&m.repos, m.overrides)
		m.oracle = m.activation
	}
	return m
}

// Rebuild rescans every source, builds a new repository and publishes it.
// In-flight broadcasts keep the repository they started with. If a source
// fails the previous repository stays published.
func (m *Manager) Rebuild(ctx context.Context) (*Repository, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}

	m.rebuildMu.Lock()
	defer m.rebuildMu.Unlock()

	var descs []*PluginDescriptor
	for _, src := range m.sources {
		found, err := src.Discover(ctx)
		if err != nil {
			RecordRebuild(StatusError, nil)
			return nil, fmt.Errorf("discover plugins: %w", err)
		}
		descs = append(descs, found...)
	}

	var status StatusFunc
	if m.activation != nil {
		status = m.activation.Status(ctx)
	}

	repo := Build(descs, status)
	m.repos.Swap(repo)
	RecordRebuild(StatusSuccess, repo)

	slog.InfoContext(ctx, "plugin repository rebuilt",
		"plugins", len(repo.order),
		"inactive", len(repo.inactive),
		"events", len(repo.events))

	return repo, nil
}

// Repository returns the published repository, or nil before the first
// rebuild.
func (m *Manager) Repository() *Repository {
	return m.repos.Load()
}

// Oracle returns the activation oracle in use.
func (m *Manager) Oracle() ActivationOracle {
	return m.oracle
}

// IsActive reports whether a plugin currently takes part in broadcasts.
func (m *Manager) IsActive(ctx context.Context, pluginID string) bool {
	return m.oracle.IsActive(ctx, NormalizeName(pluginID))
}

// SendEvent broadcasts event and returns the aggregate value. A false value
// means an implementer aborted the broadcast.
//
// The event is recorded in the call chain carried by ctx, if any; see
// WithChain and NextEvent. Without a chain the broadcast runs in a
// throw-away chain.
func (m *Manager) SendEvent(ctx context.Context, event string, args Args) (any, error) {
	res, err := m.Send(ctx, event, args)
	return res.Value(), err
}

// Send is SendEvent returning the tagged result.
func (m *Manager) Send(ctx context.Context, event string, args Args) (Result, error) {
	if m.closed.Load() {
		return Abort(), ErrManagerClosed
	}

	name := NormalizeName(event)
	repo := m.repos.Load()
	owner, ok := repo.Event(name)
	if !ok {
		RecordBroadcast(name, StatusUndefined, 0)
		return Abort(), ErrUndefinedEvent(name)
	}

	chain := ChainFromContext(ctx)
	if chain == nil {
		chain = NewChain()
		defer func() {
			if err := chain.Close(); err != nil {
				slog.WarnContext(ctx, "failed to release plugin instances", "error", err)
			}
		}()
		ctx = WithChain(ctx, chain)
	}
	chain.begin(name)

	impls := m.activeImplementations(ctx, repo, name)

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	result, err := m.dispatcher.Broadcast(ctx, name, impls, m.resolver(repo, chain), args)
	if err != nil && !IsBroadcastInterrupted(err) {
		chain.record(owner, Abort())
		return Abort(), err
	}
	chain.record(owner, result)
	return result, err
}

// activeImplementations filters the implementers of event through the
// activation oracle and orders them by priority, highest first. Equal
// priorities keep discovery order.
func (m *Manager) activeImplementations(ctx context.Context, repo *Repository, event string) []Implementation {
	all := repo.Implementations(event)
	impls := all[:0]
	for _, impl := range all {
		if m.oracle.IsActive(ctx, impl.PluginID) {
			impls = append(impls, impl)
		}
	}
	sort.SliceStable(impls, func(i, j int) bool {
		return impls[i].Method.Priority > impls[j].Method.Priority
	})
	return impls
}

// resolver returns a Resolver that reuses instances within chain and loads
// missing ones through the plugin's runtime loader.
func (m *Manager) resolver(repo *Repository, chain *Chain) Resolver {
	return func(ctx context.Context, pluginID string) (Instance, error) {
		if inst, ok := chain.instance(pluginID); ok {
			return inst, nil
		}

		desc, ok := repo.Plugin(pluginID)
		if !ok {
			return nil, ErrUnknownPlugin(pluginID)
		}
		loader, ok := m.loaders[desc.Runtime]
		if !ok {
			return nil, ErrNoLoader(pluginID, desc.Runtime)
		}

		inst, err := loader.Load(ctx, desc, m.dependencies(desc, repo, chain))
		if err != nil {
			return nil, ErrPluginLoad(pluginID, err)
		}
		chain.remember(pluginID, inst)
		return inst, nil
	}
}

func (m *Manager) dependencies(desc *PluginDescriptor, repo *Repository, chain *Chain) Dependencies {
	settings := desc.Settings()
	for k, v := range m.settings[desc.ID] {
		settings[k] = v
	}
	return Dependencies{
		Logger: m.logger.With(
			"plugin", desc.ID,
			"chain_id", chain.ID().String()),
		Repository: repo,
		Oracle:     m.oracle,
		Sender:     m,
		Settings:   settings,
	}
}

// NextEvent returns the event that should follow the last event of the call
// chain in ctx. ok is false when ctx carries no chain or nothing follows.
func (m *Manager) NextEvent(ctx context.Context) (event string, ok bool) {
	chain := ChainFromContext(ctx)
	if chain == nil {
		return "", false
	}
	return chain.NextEvent()
}

// SetActive stores an activation override. Enabling a plugin that was
// inactive when the repository was built triggers a rebuild so its events
// are registered.
func (m *Manager) SetActive(ctx context.Context, pluginID string, active bool) error {
	if m.overrides == nil {
		return errors.New("no activation override store configured")
	}
	id := NormalizeName(pluginID)
	repo := m.repos.Load()
	desc, ok := repo.Plugin(id)
	if !ok {
		return ErrUnknownPlugin(id)
	}
	if desc.ActiveByDefault() && !active {
		return fmt.Errorf("plugin %s is always active and cannot be disabled", id)
	}

	if err := m.overrides.Set(ctx, id, active); err != nil {
		return fmt.Errorf("set activation override for %s: %w", id, err)
	}
	slog.InfoContext(ctx, "plugin activation changed", "plugin", id, "active", active)

	if active && repo.Inactive(id) {
		if _, err := m.Rebuild(ctx); err != nil {
			return err
		}
	}
	return nil
}

// ResetActive removes the activation override of a plugin.
func (m *Manager) ResetActive(ctx context.Context, pluginID string) error {
	if m.overrides == nil {
		return errors.New("no activation override store configured")
	}
	id := NormalizeName(pluginID)
	if err := m.overrides.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete activation override for %s: %w", id, err)
	}
	if desc, ok := m.repos.Load().Plugin(id); ok && desc.Activation != ActivationOff && m.repos.Load().Inactive(id) {
		_, err := m.Rebuild(ctx)
		return err
	}
	return nil
}

// contextCloser is implemented by loaders holding runtime resources.
type contextCloser interface {
	Close(ctx context.Context) error
}

// Close shuts down the manager and every loader holding resources.
func (m *Manager) Close(ctx context.Context) error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	for rt, l := range m.loaders {
		if c, ok := l.(contextCloser); ok {
			if err := c.Close(ctx); err != nil {
				errs = append(errs, fmt.Errorf("close %s loader: %w", rt, err))
			}
		}
	}
	return errors.Join(errs...)
}
