package app

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/hangar/internal/domain/lifecycle"
	"github.com/felixgeelhaar/hangar/internal/domain/resolver"
)

// enableOrderRecorder tracks the order pre_enable hooks fire in.
type enableOrderRecorder struct {
	mu    sync.Mutex
	order []string
}

func (r *enableOrderRecorder) hook(id string) lifecycle.Hook {
	return func(context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.order = append(r.order, id)
		return nil
	}
}

func (r *enableOrderRecorder) indexOf(t *testing.T, id string) int {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, v := range r.order {
		if v == id {
			return i
		}
	}
	t.Fatalf("plugin %q never enabled, order %v", id, r.order)
	return -1
}

func TestEnableAll(t *testing.T) {
	t.Run("chain activates dependencies first", func(t *testing.T) {
		env := newTestEnv(t)
		env.install(t, manifestYAML("app", "1.0.0", map[string]string{"lib": ">=1.0.0"}))
		env.install(t, manifestYAML("lib", "1.0.0", map[string]string{"core": ""}))
		env.install(t, manifestYAML("core", "1.0.0", nil))

		rec := &enableOrderRecorder{}
		for _, id := range []string{"app", "lib", "core"} {
			env.host.Hooks().Register(id, "pre_enable", rec.hook(id))
		}

		require.NoError(t, env.host.EnableAll(context.Background()))
		assert.Less(t, rec.indexOf(t, "core"), rec.indexOf(t, "lib"))
		assert.Less(t, rec.indexOf(t, "lib"), rec.indexOf(t, "app"))
		assert.Equal(t, []string{"app", "core", "lib"}, env.host.EnabledPlugins())
	})

	t.Run("independent branches both activate", func(t *testing.T) {
		env := newTestEnv(t)
		env.install(t, manifestYAML("left", "1.0.0", nil))
		env.install(t, manifestYAML("right", "1.0.0", nil))
		env.cfg.Activation.Parallelism = 2

		require.NoError(t, env.host.EnableAll(context.Background()))
		assert.Equal(t, []string{"left", "right"}, env.host.EnabledPlugins())
	})

	t.Run("cyclic set fails before any activation", func(t *testing.T) {
		env := newTestEnv(t)
		env.install(t, manifestYAML("ping", "1.0.0", map[string]string{"pong": ""}))
		env.install(t, manifestYAML("pong", "1.0.0", map[string]string{"ping": ""}))

		err := env.host.EnableAll(context.Background())
		require.True(t, resolver.IsCyclicDependency(err))
		assert.Empty(t, env.host.EnabledPlugins())
	})

	t.Run("failed dependency halts dependents without their hooks", func(t *testing.T) {
		env := newTestEnv(t)
		env.install(t, manifestYAML("lib", "1.0.0", nil))
		env.install(t, manifestYAML("app", "1.0.0", map[string]string{"lib": ""}))

		appHookRan := false
		env.host.Hooks().Register("lib", "pre_enable", func(context.Context) error {
			return assert.AnError
		})
		env.host.Hooks().Register("app", "pre_enable", func(context.Context) error {
			appHookRan = true
			return nil
		})

		err := env.host.EnableAll(context.Background())
		require.Error(t, err)
		assert.False(t, appHookRan)
		assert.Equal(t, lifecycle.StateError, stateOf(t, env.host, "lib"))
		assert.Equal(t, lifecycle.StateInstalled, stateOf(t, env.host, "app"))
	})

	t.Run("canceled context skips pending plugins", func(t *testing.T) {
		env := newTestEnv(t)
		env.install(t, manifestYAML("solo", "1.0.0", nil))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := env.host.EnableAll(ctx)
		require.Error(t, err)
		assert.NotEqual(t, lifecycle.StateEnabled, stateOf(t, env.host, "solo"))
	})
}

func TestReconcile(t *testing.T) {
	t.Run("re-enables previously enabled plugins in dependency order", func(t *testing.T) {
		env := newTestEnv(t)
		env.install(t, manifestYAML("lib", "1.0.0", nil))
		env.install(t, manifestYAML("app", "1.0.0", map[string]string{"lib": ">=1.0.0"}))
		env.install(t, manifestYAML("dormant", "1.0.0", nil))

		require.NoError(t, env.host.Enable(context.Background(), "lib"))
		require.NoError(t, env.host.Enable(context.Background(), "app"))
		require.NoError(t, env.host.Disable(context.Background(), "app"))
		require.NoError(t, env.host.Enable(context.Background(), "app")) // enabled again
		require.NoError(t, env.host.Close())

		// Fresh host over the same state directory.
		restarted := env.newHost(t)
		assert.Equal(t, lifecycle.StateDisabled, stateOf(t, restarted, "lib"))
		assert.True(t, restarted.DeclaredEnabled("lib"))
		assert.False(t, restarted.DeclaredEnabled("dormant"))

		rec := &enableOrderRecorder{}
		restarted.Hooks().Register("lib", "pre_enable", rec.hook("lib"))
		restarted.Hooks().Register("app", "pre_enable", rec.hook("app"))

		require.NoError(t, restarted.Reconcile(context.Background()))
		assert.Less(t, rec.indexOf(t, "lib"), rec.indexOf(t, "app"))
		assert.Equal(t, []string{"app", "lib"}, restarted.EnabledPlugins())
		assert.Equal(t, lifecycle.StateInstalled, stateOf(t, restarted, "dormant"))

		// Second reconcile is a no-op.
		require.NoError(t, restarted.Reconcile(context.Background()))
		assert.Equal(t, []string{"app", "lib"}, restarted.EnabledPlugins())
	})

	t.Run("disabled plugins stay untouched", func(t *testing.T) {
		env := newTestEnv(t)
		env.install(t, manifestYAML("quiet", "1.0.0", nil))
		require.NoError(t, env.host.Enable(context.Background(), "quiet"))
		require.NoError(t, env.host.Disable(context.Background(), "quiet"))
		require.NoError(t, env.host.Close())

		restarted := env.newHost(t)
		require.NoError(t, restarted.Reconcile(context.Background()))
		assert.Equal(t, lifecycle.StateDisabled, stateOf(t, restarted, "quiet"))
	})
}

func TestEvents(t *testing.T) {
	env := newTestEnv(t)
	events := env.host.Subscribe()

	id := env.install(t, manifestYAML("markdown", "1.0.0", nil))
	require.NoError(t, env.host.Enable(context.Background(), id))

	first := <-events
	assert.Equal(t, "markdown", first.PluginID)
	assert.Equal(t, lifecycle.StateUninstalled, first.From)
	assert.Equal(t, lifecycle.StateInstalled, first.To)
	assert.NotEmpty(t, first.ID)
	assert.NoError(t, first.Err)

	second := <-events
	assert.Equal(t, lifecycle.StateEnabled, second.To)
}
