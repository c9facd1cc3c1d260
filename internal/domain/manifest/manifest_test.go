package manifest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDescriptor = `
id: media-tools
version: 1.2.0
displayName: Media Tools
description: Transcoding helpers
dependencies:
  - id: codec-core
    range: ">=1.0.0"
capabilities:
  - files:read
  - plugins:call
entryPoint: plugin.wasm
`

func TestParse(t *testing.T) {
	t.Run("valid descriptor", func(t *testing.T) {
		m, err := Parse([]byte(validDescriptor))
		require.NoError(t, err)
		assert.Equal(t, "media-tools", m.ID)
		assert.Equal(t, "1.2.0", m.Version)
		require.Len(t, m.Dependencies, 1)
		assert.Equal(t, "codec-core", m.Dependencies[0].ID)
		assert.Equal(t, ">=1.0.0", m.Dependencies[0].Range)
		assert.Equal(t, "media-tools@1.2.0", m.String())
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := Parse(nil)
		assert.True(t, IsManifestError(err))
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Parse([]byte("id: [unclosed"))
		assert.True(t, IsManifestError(err))
		assert.Contains(t, err.Error(), "malformed")
	})

	t.Run("missing required fields", func(t *testing.T) {
		_, err := Parse([]byte("displayName: nameless"))
		require.True(t, IsManifestError(err))
		assert.Contains(t, err.Error(), "id is required")
		assert.Contains(t, err.Error(), "version is required")
	})

	t.Run("invalid version", func(t *testing.T) {
		_, err := Parse([]byte("id: broken\nversion: not.a.version"))
		require.True(t, IsManifestError(err))
		assert.Contains(t, err.Error(), "not valid semantic versioning")
	})

	t.Run("invalid dependency range", func(t *testing.T) {
		data := "id: broken\nversion: 1.0.0\ndependencies:\n  - id: other\n    range: '>=banana'"
		_, err := Parse([]byte(data))
		require.True(t, IsManifestError(err))
		assert.Contains(t, err.Error(), "invalid version range")
	})

	t.Run("self dependency", func(t *testing.T) {
		data := "id: selfish\nversion: 1.0.0\ndependencies:\n  - id: selfish"
		_, err := Parse([]byte(data))
		require.True(t, IsManifestError(err))
		assert.Contains(t, err.Error(), "cannot depend on itself")
	})

	t.Run("invalid capability syntax", func(t *testing.T) {
		data := "id: capless\nversion: 1.0.0\ncapabilities:\n  - justonename"
		_, err := Parse([]byte(data))
		require.True(t, IsManifestError(err))
		assert.Contains(t, err.Error(), "category:action")
	})

	t.Run("oversized descriptor", func(t *testing.T) {
		_, err := Parse([]byte("id: big\n# " + strings.Repeat("x", MaxSize)))
		require.True(t, IsManifestError(err))
		assert.Contains(t, err.Error(), "exceeds limit")
	})

	t.Run("incomplete embedded signature", func(t *testing.T) {
		data := "id: signed\nversion: 1.0.0\nsignature:\n  type: ed25519"
		_, err := Parse([]byte(data))
		require.True(t, IsManifestError(err))
		assert.Contains(t, err.Error(), "signature.keyId is required")
	})
}

func TestValidateIDFormat(t *testing.T) {
	cases := []struct {
		id      string
		wantErr bool
	}{
		{"media-tools", false},
		{"vehicle.explorer", false},
		{"db_connector2", false},
		{"a", true},
		{"9lives", true},
		{"spaces bad", true},
		{strings.Repeat("a", 65), true},
	}
	for _, tc := range cases {
		err := validateIDFormat(tc.id)
		if tc.wantErr {
			assert.Error(t, err, "id %q", tc.id)
		} else {
			assert.NoError(t, err, "id %q", tc.id)
		}
	}
}

func TestManifestClone(t *testing.T) {
	m, err := Parse([]byte(validDescriptor))
	require.NoError(t, err)

	clone := m.Clone()
	clone.Dependencies[0].ID = "mutated"
	clone.Capabilities[0] = "mutated:cap"

	assert.Equal(t, "codec-core", m.Dependencies[0].ID)
	assert.Equal(t, "files:read", m.Capabilities[0])
}
