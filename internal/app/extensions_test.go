package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/hangar/internal/domain/extension"
	"github.com/felixgeelhaar/hangar/internal/domain/isolation"
	"github.com/felixgeelhaar/hangar/internal/domain/lifecycle"
)

func renderHandler(_ context.Context, payload interface{}) (interface{}, error) {
	s, _ := payload.(string)
	return "<p>" + s + "</p>", nil
}

func TestExtensions(t *testing.T) {
	t.Run("registration requires enabled owner", func(t *testing.T) {
		env := newTestEnv(t)
		id := env.install(t, manifestYAML("markdown", "1.0.0", nil))

		err := env.host.RegisterExtension(id, "render", "Renderer", renderHandler)
		require.True(t, lifecycle.IsStateConflict(err))

		require.NoError(t, env.host.Enable(context.Background(), id))
		require.NoError(t, env.host.RegisterExtension(id, "render", "Renderer", renderHandler))
		assert.Len(t, env.host.QueryExtensions("Renderer"), 1)
	})

	t.Run("disable revokes points and cached handles fail fast", func(t *testing.T) {
		env := newTestEnv(t)
		id := env.install(t, manifestYAML("markdown", "1.0.0", nil))
		require.NoError(t, env.host.Enable(context.Background(), id))
		require.NoError(t, env.host.RegisterExtension(id, "render", "Renderer", renderHandler))

		handles := env.host.QueryExtensions("Renderer")
		require.Len(t, handles, 1)
		cached := handles[0]

		require.NoError(t, env.host.Disable(context.Background(), id))
		assert.Empty(t, env.host.QueryExtensions("Renderer"))

		_, err := cached.Invoke(context.Background(), "hi")
		assert.True(t, lifecycle.IsStateConflict(err))
	})

	t.Run("invocation is mediated by the caller boundary", func(t *testing.T) {
		env := newTestEnv(t)
		provider := env.install(t, manifestYAML("markdown", "1.0.0", nil))
		caller := env.install(t, manifestYAML("previewer", "1.0.0", nil, "plugins:call"))
		bare := env.install(t, manifestYAML("bare", "1.0.0", nil))

		require.NoError(t, env.host.Enable(context.Background(), provider))
		require.NoError(t, env.host.Enable(context.Background(), caller))
		require.NoError(t, env.host.Enable(context.Background(), bare))
		require.NoError(t, env.host.RegisterExtension(provider, "render", "Renderer", renderHandler))

		handle, ok := findHandle(env.host, "Renderer")
		require.True(t, ok)

		out, err := env.host.InvokeExtension(context.Background(), caller, handle, "hi")
		require.NoError(t, err)
		assert.Equal(t, "<p>hi</p>", out)

		// The caller without plugins:call is stopped at its boundary.
		_, err = env.host.InvokeExtension(context.Background(), bare, handle, "hi")
		assert.True(t, isolation.IsViolation(err))
	})

	t.Run("panicking handler becomes an error", func(t *testing.T) {
		env := newTestEnv(t)
		provider := env.install(t, manifestYAML("markdown", "1.0.0", nil))
		caller := env.install(t, manifestYAML("previewer", "1.0.0", nil, "plugins:call"))
		require.NoError(t, env.host.Enable(context.Background(), provider))
		require.NoError(t, env.host.Enable(context.Background(), caller))

		require.NoError(t, env.host.RegisterExtension(provider, "render", "Renderer", func(context.Context, interface{}) (interface{}, error) {
			panic("render bug")
		}))

		handle, ok := findHandle(env.host, "Renderer")
		require.True(t, ok)

		_, err := env.host.InvokeExtension(context.Background(), caller, handle, "hi")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "panicked")
	})
}

func findHandle(h *Host, iface string) (*extension.Handle, bool) {
	handles := h.QueryExtensions(iface)
	if len(handles) == 0 {
		return nil, false
	}
	return handles[0], true
}
