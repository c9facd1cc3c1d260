package signing

import (
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func authorizedKeyLine(t *testing.T, keyID string, pub ed25519.PublicKey) string {
	t.Helper()
	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	return keyID + " " + strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub)))
}

func TestLoadKeystore(t *testing.T) {
	t.Run("loads ed25519 keys with metadata", func(t *testing.T) {
		pub1, _, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)
		pub2, _, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		dir := t.TempDir()
		keysPath := filepath.Join(dir, "trusted_keys")
		content := "# hangar trusted signers\n" +
			authorizedKeyLine(t, "publisher-1", pub1) + "\n\n" +
			authorizedKeyLine(t, "publisher-2", pub2) + "\n"
		require.NoError(t, os.WriteFile(keysPath, []byte(content), 0o600))

		metaPath := filepath.Join(dir, "keys.ini")
		meta := "[publisher-1]\ncomment = media team release key\n"
		require.NoError(t, os.WriteFile(metaPath, []byte(meta), 0o600))

		ks, err := LoadKeystore(keysPath, metaPath)
		require.NoError(t, err)
		assert.Equal(t, 2, ks.Count())

		k1, ok := ks.Lookup("publisher-1")
		require.True(t, ok)
		assert.Equal(t, "media team release key", k1.Comment)
		assert.True(t, strings.HasPrefix(k1.Fingerprint(), "SHA256:"))

		k2, ok := ks.Lookup("publisher-2")
		require.True(t, ok)
		assert.Empty(t, k2.Comment)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadKeystore(filepath.Join(t.TempDir(), "nope"), "")
		assert.ErrorIs(t, err, ErrKeystoreNotFound)
	})

	t.Run("short line", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "trusted_keys")
		require.NoError(t, os.WriteFile(path, []byte("just-an-id\n"), 0o600))

		_, err := LoadKeystore(path, "")
		assert.ErrorContains(t, err, "line 1")
	})

	t.Run("missing metadata sidecar is tolerated", func(t *testing.T) {
		pub, _, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		dir := t.TempDir()
		keysPath := filepath.Join(dir, "trusted_keys")
		require.NoError(t, os.WriteFile(keysPath, []byte(authorizedKeyLine(t, "k", pub)+"\n"), 0o600))

		ks, err := LoadKeystore(keysPath, filepath.Join(dir, "absent.ini"))
		require.NoError(t, err)
		assert.Equal(t, 1, ks.Count())
	})
}
