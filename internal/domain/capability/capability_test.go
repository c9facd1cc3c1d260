package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("valid capability", func(t *testing.T) {
		c, err := Parse("files:read")
		require.NoError(t, err)
		assert.Equal(t, CategoryFiles, c.Category())
		assert.Equal(t, ActionRead, c.Action())
		assert.Equal(t, "files:read", c.String())
	})

	t.Run("empty string", func(t *testing.T) {
		_, err := Parse("")
		assert.ErrorIs(t, err, ErrInvalidCapability)
	})

	t.Run("missing action", func(t *testing.T) {
		_, err := Parse("files")
		assert.ErrorIs(t, err, ErrInvalidCapability)
	})

	t.Run("unknown category", func(t *testing.T) {
		_, err := Parse("teleport:now")
		assert.ErrorIs(t, err, ErrInvalidCapability)
	})
}

func TestMatches(t *testing.T) {
	assert.True(t, MustParse("files:*").Matches(CapFilesRead))
	assert.True(t, CapFilesRead.Matches(MustParse("files:*")))
	assert.True(t, CapFilesRead.Matches(CapFilesRead))
	assert.False(t, CapFilesRead.Matches(CapFilesWrite))
	assert.False(t, CapFilesRead.Matches(CapNetworkFetch))
}

func TestIsDangerous(t *testing.T) {
	assert.True(t, CapShellExecute.IsDangerous())
	assert.True(t, CapSecretsRead.IsDangerous())
	assert.False(t, CapFilesRead.IsDangerous())
	assert.False(t, CapPluginsCall.IsDangerous())
}

func TestSetOperations(t *testing.T) {
	t.Run("intersection keeps the narrower grant", func(t *testing.T) {
		requested := NewSet(CapFilesRead, CapShellExecute)
		allowed := NewSet(MustParse("files:*"))

		got := requested.Intersection(allowed)
		assert.True(t, got.Has(CapFilesRead))
		assert.False(t, got.Has(CapShellExecute))
		assert.Len(t, got, 1)
	})

	t.Run("difference", func(t *testing.T) {
		s := NewSet(CapFilesRead, CapNetworkFetch)
		got := s.Difference(NewSet(CapNetworkFetch))
		assert.Equal(t, []string{"files:read"}, got.Strings())
	})

	t.Run("list is sorted", func(t *testing.T) {
		s := NewSet(CapNetworkFetch, CapFilesRead)
		assert.Equal(t, []string{"files:read", "network:fetch"}, s.Strings())
	})

	t.Run("parse set propagates errors", func(t *testing.T) {
		_, err := ParseSet([]string{"files:read", "bogus"})
		assert.Error(t, err)
	})
}

func TestPolicy(t *testing.T) {
	t.Run("blocked wins over granted", func(t *testing.T) {
		p := NewPolicyBuilder().
			Grant(MustParse("files:*")).
			Block(CapFilesWrite).
			Build()
		assert.NoError(t, p.Check(CapFilesRead))
		assert.ErrorIs(t, p.Check(CapFilesWrite), ErrCapabilityDenied)
	})

	t.Run("ungranted is rejected", func(t *testing.T) {
		p := DefaultPolicy()
		assert.ErrorIs(t, p.Check(MustParse("secrets:write")), ErrCapabilityNotGranted)
	})

	t.Run("dangerous requires approval", func(t *testing.T) {
		p := NewPolicyBuilder().Grant(CapShellExecute).Build()
		assert.ErrorIs(t, p.Check(CapShellExecute), ErrDangerousCapability)

		approved := NewPolicyBuilder().Grant(CapShellExecute).Approve(CapShellExecute).Build()
		assert.NoError(t, approved.Check(CapShellExecute))
	})

	t.Run("allowed filters the request", func(t *testing.T) {
		requested := NewSet(CapFilesRead, CapShellExecute, CapSecretsRead)
		got := DefaultPolicy().Allowed(requested)
		assert.Equal(t, []string{"files:read"}, got.Strings())
	})

	t.Run("restricted policy grants nothing", func(t *testing.T) {
		got := RestrictedPolicy().Allowed(NewSet(CapFilesRead))
		assert.Empty(t, got)
	})
}
