package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// emptyModule is the smallest valid WASM binary: magic plus version,
// no sections, no exports.
var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	r, err := NewRuntime(context.Background(), DefaultConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestModuleValidate(t *testing.T) {
	t.Run("valid module", func(t *testing.T) {
		m := NewModule("demo", emptyModule)
		assert.NoError(t, m.Validate())
		assert.NotEmpty(t, m.Checksum)
	})

	t.Run("missing plugin ID", func(t *testing.T) {
		m := &Module{Bytes: emptyModule}
		assert.ErrorIs(t, m.Validate(), ErrModuleInvalid)
	})

	t.Run("missing bytes", func(t *testing.T) {
		m := &Module{PluginID: "demo"}
		assert.ErrorIs(t, m.Validate(), ErrModuleInvalid)
	})

	t.Run("checksum mismatch", func(t *testing.T) {
		m := NewModule("demo", emptyModule)
		m.Checksum = "deadbeef"
		err := m.Validate()
		require.ErrorIs(t, err, ErrModuleInvalid)
		assert.Contains(t, err.Error(), "checksum mismatch")
	})
}

func TestRuntimeInvoke(t *testing.T) {
	r := newTestRuntime(t)

	t.Run("missing export is a no-op", func(t *testing.T) {
		result, err := r.Invoke(context.Background(), NewModule("demo", emptyModule), "pre_enable")
		require.NoError(t, err)
		assert.False(t, result.Invoked)
	})

	t.Run("garbage module fails to compile", func(t *testing.T) {
		_, err := r.Invoke(context.Background(), NewModule("demo", []byte("not wasm")), "pre_enable")
		assert.ErrorIs(t, err, ErrModuleInvalid)
	})

	t.Run("closed runtime rejects invocations", func(t *testing.T) {
		closed := newTestRuntime(t)
		require.NoError(t, closed.Close())
		assert.False(t, closed.Available())

		_, err := closed.Invoke(context.Background(), NewModule("demo", emptyModule), "pre_enable")
		assert.ErrorIs(t, err, ErrRuntimeClosed)
	})
}

func TestHookRunner(t *testing.T) {
	r := newTestRuntime(t)
	runner := NewHookRunner(r)

	t.Run("no module loaded is a no-op", func(t *testing.T) {
		assert.NoError(t, runner.Run(context.Background(), "ghost", "pre_enable"))
	})

	t.Run("load and run", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "entry.wasm")
		require.NoError(t, os.WriteFile(path, emptyModule, 0o644))

		require.NoError(t, runner.LoadModule("demo", path))
		assert.True(t, runner.Loaded("demo"))
		assert.NoError(t, runner.Run(context.Background(), "demo", "pre_enable"))
	})

	t.Run("remove module", func(t *testing.T) {
		runner.RemoveModule("demo")
		assert.False(t, runner.Loaded("demo"))
	})

	t.Run("missing file", func(t *testing.T) {
		err := runner.LoadModule("demo", filepath.Join(t.TempDir(), "nope.wasm"))
		assert.Error(t, err)
	})
}
