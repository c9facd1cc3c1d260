package isolation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/hangar/internal/domain/capability"
)

func testPolicy(t *testing.T) *capability.Policy {
	t.Helper()
	return capability.NewPolicyBuilder().
		Grant(capability.CapFilesRead, capability.CapNetworkFetch).
		Block(capability.MustParse("network:call")).
		RequireApproval(true).
		Build()
}

func TestBoundary(t *testing.T) {
	m := NewManager(testPolicy(t))

	declared := capability.NewSet(
		capability.CapFilesRead,
		capability.CapNetworkFetch,
		capability.CapShellExecute, // dangerous, unapproved
	)

	b, err := m.Grant("tidy", declared)
	require.NoError(t, err)

	t.Run("grant is the policy-filtered intersection", func(t *testing.T) {
		assert.Equal(t, []string{"files:read", "network:fetch"}, b.Granted().Strings())
	})

	t.Run("granted capability passes", func(t *testing.T) {
		assert.NoError(t, b.Check(capability.CapFilesRead))
	})

	t.Run("undeclared capability is a violation", func(t *testing.T) {
		err := b.Check(capability.CapSecretsRead)
		require.True(t, IsViolation(err))
		var ve *ViolationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "tidy", ve.PluginID)
		assert.Equal(t, "secrets:read", ve.Capability)
	})

	t.Run("dangerous unapproved capability excluded from grant", func(t *testing.T) {
		assert.True(t, IsViolation(b.Check(capability.CapShellExecute)))
	})

	t.Run("double grant rejected", func(t *testing.T) {
		_, err := m.Grant("tidy", declared)
		assert.ErrorIs(t, err, ErrBoundaryExists)
	})

	t.Run("release revokes checks", func(t *testing.T) {
		m.Release("tidy")
		assert.True(t, b.Released())
		err := b.Check(capability.CapFilesRead)
		require.True(t, IsViolation(err))
		assert.Contains(t, err.Error(), "boundary released")

		_, ok := m.BoundaryFor("tidy")
		assert.False(t, ok)
	})

	t.Run("re-grant gets a fresh grant ID", func(t *testing.T) {
		b2, err := m.Grant("tidy", declared)
		require.NoError(t, err)
		assert.NotEqual(t, b.GrantID(), b2.GrantID())
	})
}

func TestMediate(t *testing.T) {
	m := NewManager(testPolicy(t))
	_, err := m.Grant("tidy", capability.NewSet(capability.CapFilesRead))
	require.NoError(t, err)

	t.Run("allowed call runs", func(t *testing.T) {
		ran := false
		err := m.Mediate(context.Background(), "tidy", capability.CapFilesRead, func(context.Context) error {
			ran = true
			return nil
		})
		require.NoError(t, err)
		assert.True(t, ran)
	})

	t.Run("denied call never runs", func(t *testing.T) {
		ran := false
		err := m.Mediate(context.Background(), "tidy", capability.CapNetworkFetch, func(context.Context) error {
			ran = true
			return nil
		})
		assert.True(t, IsViolation(err))
		assert.False(t, ran)
	})

	t.Run("no boundary is a violation", func(t *testing.T) {
		err := m.Mediate(context.Background(), "ghost", capability.CapFilesRead, func(context.Context) error {
			return nil
		})
		require.True(t, IsViolation(err))
		assert.Contains(t, err.Error(), "no active boundary")
	})

	t.Run("panic recovered as error", func(t *testing.T) {
		err := m.Mediate(context.Background(), "tidy", capability.CapFilesRead, func(context.Context) error {
			panic("plugin bug")
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "panicked")
		assert.False(t, IsViolation(err))
	})

	t.Run("plugin error passes through", func(t *testing.T) {
		wantErr := errors.New("boom")
		err := m.Mediate(context.Background(), "tidy", capability.CapFilesRead, func(context.Context) error {
			return wantErr
		})
		assert.ErrorIs(t, err, wantErr)
	})
}
