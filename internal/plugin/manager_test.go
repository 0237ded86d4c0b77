// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

package plugin_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanaFramework/yanaFramework-sub012/internal/plugin"
	"github.com/yanaFramework/yanaFramework-sub012/internal/plugin/native"
)

// recorder collects handler invocations across plugins.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, id)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

func (r *recorder) handler(id string, v any) native.Handler {
	return func(context.Context, plugin.Call) (plugin.Result, error) {
		r.add(id)
		return plugin.FromValue(v), nil
	}
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// handlers returns a constructor yielding the given handlers.
func handlers(h map[string]native.Handler) func(plugin.Dependencies) (plugin.Instance, error) {
	return func(plugin.Dependencies) (plugin.Instance, error) {
		return native.NewHandlers(h), nil
	}
}

func newManager(t *testing.T, reg *native.Registry, opts ...plugin.ManagerOption) *plugin.Manager {
	t.Helper()
	opts = append([]plugin.ManagerOption{
		plugin.WithSource(reg),
		plugin.WithLoader(plugin.RuntimeNative, reg),
	}, opts...)
	m := plugin.NewManager(opts...)
	_, err := m.Rebuild(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	return m
}

// coreAudit registers an always-active primary core plugin owning save and a
// library audit plugin with a catch-all.
func coreAudit(rec *recorder) *native.Registry {
	reg := native.NewRegistry()
	reg.MustRegister(native.Definition{
		Manifest: plugin.Manifest{
			ID:         "core",
			Version:    "1.0.0",
			Type:       "primary",
			Activation: "always",
			Methods: []plugin.MethodConfig{
				{Name: "save", OnSuccess: "saved", OnError: "save_failed"},
				{Name: "saved"},
				{Name: "save_failed"},
			},
		},
		New: handlers(map[string]native.Handler{
			"save": func(_ context.Context, call plugin.Call) (plugin.Result, error) {
				rec.add("core")
				if call.Args["fail"] == true {
					return plugin.Abort(), nil
				}
				return plugin.Continue(call.Args["key"]), nil
			},
			"saved":       rec.handler("core", true),
			"save_failed": rec.handler("core", true),
		}),
	})
	reg.MustRegister(native.Definition{
		Manifest: plugin.Manifest{
			ID:       "audit",
			Version:  "1.0.0",
			Type:     "library",
			CatchAll: &plugin.CatchAllConfig{Name: "record"},
		},
		New: handlers(map[string]native.Handler{
			"record": rec.handler("audit", "audited"),
		}),
	})
	return reg
}

func TestManager_SendEventUndefined(t *testing.T) {
	m := newManager(t, native.NewRegistry())

	v, err := m.SendEvent(context.Background(), "nothing", nil)

	assert.True(t, plugin.IsUndefinedEvent(err))
	assert.Equal(t, false, v)
}

func TestManager_SendEventBeforeRebuild(t *testing.T) {
	m := plugin.NewManager()

	_, err := m.SendEvent(context.Background(), "save", nil)

	assert.True(t, plugin.IsUndefinedEvent(err))
}

func TestManager_CoreAndAudit(t *testing.T) {
	rec := &recorder{}
	overrides := newMemOverrides()
	m := newManager(t, coreAudit(rec), plugin.WithOverrides(overrides))
	ctx := context.Background()

	v, err := m.SendEvent(ctx, "SAVE", plugin.Args{"key": "k1"})
	require.NoError(t, err)
	assert.Equal(t, "k1", v, "catch-all value does not replace the aggregate")
	assert.Equal(t, []string{"core", "audit"}, rec.list())

	repo := m.Repository()
	require.NoError(t, m.SetActive(ctx, "audit", false))
	assert.Same(t, repo, m.Repository(), "deactivation needs no rebuild")
	assert.Equal(t, []string{"core", "audit"}, m.Repository().ImplementerIDs("save"))

	rec.reset()
	_, err = m.SendEvent(ctx, "save", plugin.Args{"key": "k2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"core"}, rec.list())
}

func TestManager_PriorityOrderIsStable(t *testing.T) {
	rec := &recorder{}
	reg := native.NewRegistry()
	for _, p := range []struct {
		id       string
		priority int
	}{{"low", 0}, {"high1", 5}, {"mid", 1}, {"high2", 5}} {
		reg.MustRegister(native.Definition{
			Manifest: plugin.Manifest{
				ID:      p.id,
				Version: "1.0.0",
				Methods: []plugin.MethodConfig{{Name: "ev", Priority: p.priority}},
			},
			New: handlers(map[string]native.Handler{"ev": rec.handler(p.id, p.id)}),
		})
	}
	m := newManager(t, reg)

	for range 3 {
		rec.reset()
		v, err := m.SendEvent(context.Background(), "ev", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"high1", "high2", "mid", "low"}, rec.list())
		assert.Equal(t, "low", v)
	}
}

func TestManager_NextEvent(t *testing.T) {
	tests := []struct {
		name   string
		args   plugin.Args
		want   string
		wantOK bool
	}{
		{name: "success", args: plugin.Args{"key": "k"}, want: "saved", wantOK: true},
		{name: "abort", args: plugin.Args{"fail": true}, want: "save_failed", wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newManager(t, coreAudit(&recorder{}))
			chain := plugin.NewChain()
			defer chain.Close() //nolint:errcheck // native instances hold nothing
			ctx := plugin.WithChain(context.Background(), chain)

			_, err := m.SendEvent(ctx, "save", tt.args)
			require.NoError(t, err)

			next, ok := m.NextEvent(ctx)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, next)
			assert.Equal(t, "save", chain.FirstEvent())

			_, err = m.SendEvent(ctx, next, nil)
			require.NoError(t, err)
			_, ok = m.NextEvent(ctx)
			assert.False(t, ok, "follow-up events declare no successor")
			assert.Equal(t, "save", chain.FirstEvent())
			assert.Equal(t, next, chain.LastEvent())
		})
	}
}

func TestManager_NextEventWithoutChain(t *testing.T) {
	m := newManager(t, coreAudit(&recorder{}))

	_, err := m.SendEvent(context.Background(), "save", nil)
	require.NoError(t, err)

	_, ok := m.NextEvent(context.Background())
	assert.False(t, ok)
}

func TestManager_HandlerErrorRoutesToOnError(t *testing.T) {
	boom := errors.New("boom")
	reg := native.NewRegistry()
	reg.MustRegister(native.Definition{
		Manifest: plugin.Manifest{
			ID:      "core",
			Version: "1.0.0",
			Methods: []plugin.MethodConfig{{Name: "save", OnSuccess: "saved", OnError: "save_failed"}},
		},
		New: handlers(map[string]native.Handler{
			"save": func(context.Context, plugin.Call) (plugin.Result, error) { return plugin.Result{}, boom },
		}),
	})
	m := newManager(t, reg)
	chain := plugin.NewChain()
	ctx := plugin.WithChain(context.Background(), chain)

	v, err := m.SendEvent(ctx, "save", nil)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, false, v)
	next, ok := m.NextEvent(ctx)
	assert.True(t, ok)
	assert.Equal(t, "save_failed", next)
}

func TestManager_InstancesAreMemoizedPerChain(t *testing.T) {
	var built int
	reg := native.NewRegistry()
	reg.MustRegister(native.Definition{
		Manifest: plugin.Manifest{
			ID:      "counter",
			Version: "1.0.0",
			Methods: []plugin.MethodConfig{{Name: "inc"}},
		},
		New: func(plugin.Dependencies) (plugin.Instance, error) {
			built++
			n := 0
			return native.NewHandlers(map[string]native.Handler{
				"inc": func(context.Context, plugin.Call) (plugin.Result, error) {
					n++
					return plugin.Continue(n), nil
				},
			}), nil
		},
	})
	m := newManager(t, reg)

	ctx := plugin.WithChain(context.Background(), plugin.NewChain())
	for want := 1; want <= 3; want++ {
		v, err := m.SendEvent(ctx, "inc", nil)
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
	assert.Equal(t, 1, built)

	v, err := m.SendEvent(plugin.WithChain(context.Background(), plugin.NewChain()), "inc", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, v, "a new chain gets fresh instances")
	assert.Equal(t, 2, built)
}

func TestManager_InstancesAreLazy(t *testing.T) {
	var built []string
	reg := native.NewRegistry()
	for _, id := range []string{"first", "second"} {
		value := any(true)
		if id == "first" {
			value = false
		}
		reg.MustRegister(native.Definition{
			Manifest: plugin.Manifest{
				ID:      id,
				Version: "1.0.0",
				Methods: []plugin.MethodConfig{{Name: "ev"}},
			},
			New: func(plugin.Dependencies) (plugin.Instance, error) {
				built = append(built, id)
				return native.NewHandlers(map[string]native.Handler{"ev": native.Return(value)}), nil
			},
		})
	}
	m := newManager(t, reg)

	v, err := m.SendEvent(context.Background(), "ev", nil)

	require.NoError(t, err)
	assert.Equal(t, false, v)
	assert.Equal(t, []string{"first"}, built)
}

func TestManager_NestedSendSharesChain(t *testing.T) {
	var built int
	reg := native.NewRegistry()
	reg.MustRegister(native.Definition{
		Manifest: plugin.Manifest{
			ID:      "outer",
			Version: "1.0.0",
			Methods: []plugin.MethodConfig{{Name: "outer"}, {Name: "inner"}},
		},
		New: func(deps plugin.Dependencies) (plugin.Instance, error) {
			built++
			return native.NewHandlers(map[string]native.Handler{
				"outer": func(ctx context.Context, call plugin.Call) (plugin.Result, error) {
					v, err := deps.Sender.SendEvent(ctx, "inner", call.Args)
					if err != nil {
						return plugin.Result{}, err
					}
					return plugin.Continue(v), nil
				},
				"inner": func(_ context.Context, call plugin.Call) (plugin.Result, error) {
					return plugin.Continue(call.Args["x"]), nil
				},
			}), nil
		},
	})
	m := newManager(t, reg)
	chain := plugin.NewChain()
	t.Cleanup(func() { _ = chain.Close() })

	v, err := m.SendEvent(plugin.WithChain(context.Background(), chain), "outer", plugin.Args{"x": 7})

	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 1, built)
	assert.Equal(t, "outer", chain.FirstEvent())
	assert.Equal(t, "outer", chain.LastEvent())
}

func TestManager_PluginSettingsOverlay(t *testing.T) {
	reg := native.NewRegistry()
	reg.MustRegister(native.Definition{
		Manifest: plugin.Manifest{
			ID:       "cfg",
			Version:  "1.0.0",
			Methods:  []plugin.MethodConfig{{Name: "get"}},
			Settings: map[string]any{"a": 1, "b": 2},
		},
		New: func(deps plugin.Dependencies) (plugin.Instance, error) {
			return native.NewHandlers(map[string]native.Handler{
				"get": native.Return(deps.Settings),
			}), nil
		},
	})
	m := newManager(t, reg, plugin.WithPluginSettings("CFG", map[string]any{"b": 3}))

	v, err := m.SendEvent(context.Background(), "get", nil)

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": 3}, v)
}

func TestManager_SetActiveRebuildsForInactivePlugin(t *testing.T) {
	reg := native.NewRegistry()
	reg.MustRegister(native.Definition{
		Manifest: plugin.Manifest{
			ID:         "extra",
			Version:    "1.0.0",
			Activation: "off",
			Methods:    []plugin.MethodConfig{{Name: "extra"}},
		},
		New: handlers(map[string]native.Handler{"extra": native.Return("on")}),
	})
	overrides := newMemOverrides()
	m := newManager(t, reg, plugin.WithOverrides(overrides))
	ctx := context.Background()

	_, err := m.SendEvent(ctx, "extra", nil)
	require.True(t, plugin.IsUndefinedEvent(err))
	assert.True(t, m.Repository().Inactive("extra"))

	require.NoError(t, m.SetActive(ctx, "extra", true))

	v, err := m.SendEvent(ctx, "extra", nil)
	require.NoError(t, err)
	assert.Equal(t, "on", v)
	assert.True(t, m.IsActive(ctx, "extra"))

	require.NoError(t, m.ResetActive(ctx, "extra"))
	assert.False(t, m.IsActive(ctx, "extra"))
}

func TestManager_SetActiveErrors(t *testing.T) {
	reg := native.NewRegistry()
	reg.MustRegister(native.Definition{
		Manifest: plugin.Manifest{
			ID:         "pinned",
			Version:    "1.0.0",
			Activation: "always",
			Methods:    []plugin.MethodConfig{{Name: "ev"}},
		},
		New: handlers(map[string]native.Handler{"ev": native.Return(true)}),
	})
	ctx := context.Background()

	t.Run("no override store", func(t *testing.T) {
		m := newManager(t, reg)
		assert.Error(t, m.SetActive(ctx, "pinned", true))
	})

	m := newManager(t, reg, plugin.WithOverrides(newMemOverrides()))

	t.Run("unknown plugin", func(t *testing.T) {
		err := m.SetActive(ctx, "ghost", true)
		assert.True(t, plugin.HasCode(err, plugin.CodeUnknownPlugin))
	})

	t.Run("always active", func(t *testing.T) {
		assert.ErrorContains(t, m.SetActive(ctx, "pinned", false), "always active")
	})
}

func TestManager_OracleFailureFailsClosed(t *testing.T) {
	rec := &recorder{}
	overrides := newMemOverrides()
	m := newManager(t, coreAudit(rec), plugin.WithOverrides(overrides))

	overrides.err = errors.New("database down")
	v, err := m.SendEvent(context.Background(), "save", plugin.Args{"key": "k"})

	require.NoError(t, err)
	assert.Equal(t, "k", v)
	assert.Equal(t, []string{"core"}, rec.list(), "audit lookup fails and is skipped")
}

// oracleFunc adapts a function to ActivationOracle.
type oracleFunc func(id string) bool

func (f oracleFunc) IsActive(_ context.Context, id string) bool { return f(id) }

func TestManager_CustomOracle(t *testing.T) {
	rec := &recorder{}
	m := newManager(t, coreAudit(rec), plugin.WithOracle(oracleFunc(func(id string) bool {
		return id != "audit"
	})))

	_, err := m.SendEvent(context.Background(), "save", nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"core"}, rec.list())
}

func TestManager_BroadcastTimeout(t *testing.T) {
	reg := native.NewRegistry()
	reg.MustRegister(native.Definition{
		Manifest: plugin.Manifest{
			ID:      "slow",
			Version: "1.0.0",
			Methods: []plugin.MethodConfig{{Name: "ev", Priority: 1}},
		},
		New: handlers(map[string]native.Handler{
			"ev": func(ctx context.Context, _ plugin.Call) (plugin.Result, error) {
				<-ctx.Done()
				return plugin.Continue("slow"), nil
			},
		}),
	})
	reg.MustRegister(native.Definition{
		Manifest: plugin.Manifest{
			ID:      "late",
			Version: "1.0.0",
			Methods: []plugin.MethodConfig{{Name: "ev"}},
		},
		New: handlers(map[string]native.Handler{"ev": native.Return("late")}),
	})
	m := newManager(t, reg, plugin.WithBroadcastTimeout(10*time.Millisecond))

	v, err := m.SendEvent(context.Background(), "ev", nil)

	assert.True(t, plugin.IsBroadcastInterrupted(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "slow", v)
}

func TestManager_Closed(t *testing.T) {
	m := newManager(t, coreAudit(&recorder{}))
	require.NoError(t, m.Close(context.Background()))

	_, err := m.SendEvent(context.Background(), "save", nil)
	assert.ErrorIs(t, err, plugin.ErrManagerClosed)

	_, err = m.Rebuild(context.Background())
	assert.ErrorIs(t, err, plugin.ErrManagerClosed)
}

// toggleSource wraps a Source and fails on demand.
type toggleSource struct {
	inner plugin.Source
	fail  bool
}

func (s *toggleSource) Discover(ctx context.Context) ([]*plugin.PluginDescriptor, error) {
	if s.fail {
		return nil, errors.New("disk gone")
	}
	return s.inner.Discover(ctx)
}

func TestManager_RebuildKeepsRepositoryOnSourceFailure(t *testing.T) {
	src := &toggleSource{inner: coreAudit(&recorder{})}
	m := newManager(t, native.NewRegistry(), plugin.WithSource(src))
	repo := m.Repository()
	require.Equal(t, []string{"save", "save_failed", "saved"}, repo.Events())

	src.fail = true
	_, err := m.Rebuild(context.Background())

	assert.ErrorContains(t, err, "disk gone")
	assert.Same(t, repo, m.Repository())
}

// parity owns check: even n continues with n and routes to even, odd n
// aborts and routes to odd. Each instance keeps the last n it saw.
func parity() *native.Registry {
	reg := native.NewRegistry()
	reg.MustRegister(native.Definition{
		Manifest: plugin.Manifest{
			ID:      "parity",
			Version: "1.0.0",
			Methods: []plugin.MethodConfig{
				{Name: "check", OnSuccess: "even", OnError: "odd"},
				{Name: "even"},
				{Name: "odd"},
			},
		},
		New: func(plugin.Dependencies) (plugin.Instance, error) {
			var last int
			return native.NewHandlers(map[string]native.Handler{
				"check": func(_ context.Context, call plugin.Call) (plugin.Result, error) {
					last, _ = call.Args["n"].(int)
					time.Sleep(time.Millisecond)
					if last%2 == 1 {
						return plugin.Abort(), nil
					}
					return plugin.Continue(last), nil
				},
				"even": native.Return(true),
				"odd":  native.Return(true),
			}), nil
		},
	})
	return reg
}

func TestManager_ConcurrentChainsDuringRebuild(t *testing.T) {
	m := newManager(t, parity())
	ctx := context.Background()

	stop := make(chan struct{})
	rebuilt := make(chan error, 1)
	go func() {
		for {
			select {
			case <-stop:
				rebuilt <- nil
				return
			default:
			}
			if _, err := m.Rebuild(ctx); err != nil {
				rebuilt <- err
				return
			}
		}
	}()

	const senders = 16
	var wg sync.WaitGroup
	for n := range senders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			chain := plugin.NewChain()
			defer func() { _ = chain.Close() }()
			chainCtx := plugin.WithChain(ctx, chain)

			for range 5 {
				res, err := m.Send(chainCtx, "check", plugin.Args{"n": n})
				if !assert.NoError(t, err) {
					return
				}

				next, ok := m.NextEvent(chainCtx)
				assert.True(t, ok)
				if n%2 == 1 {
					assert.True(t, res.Aborted())
					assert.Equal(t, "odd", next)
				} else {
					assert.Equal(t, n, res.Value())
					assert.Equal(t, "even", next)
				}
				assert.Equal(t, "check", chain.FirstEvent())
				assert.Equal(t, "check", chain.LastEvent())
			}
		}()
	}
	wg.Wait()
	close(stop)

	require.NoError(t, <-rebuilt)
	assert.Equal(t, []string{"parity"}, m.Repository().ImplementerIDs("check"))
}
