package app

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArchive(t *testing.T, entries map[string]string) string {
	t.Helper()

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	for name, content := range entries {
		writeTarFile(t, tw, name, []byte(content))
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())

	path := filepath.Join(t.TempDir(), "pkg.tar.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestExtractArchive(t *testing.T) {
	t.Run("extracts nested files", func(t *testing.T) {
		pkg := writeArchive(t, map[string]string{
			"plugin.yaml":  "id: demo",
			"assets/a.txt": "hello",
		})
		dest := t.TempDir()
		require.NoError(t, extractArchive(pkg, dest))

		data, err := os.ReadFile(filepath.Join(dest, "assets", "a.txt"))
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))
	})

	t.Run("rejects path traversal", func(t *testing.T) {
		pkg := writeArchive(t, map[string]string{
			"../escape.txt": "gotcha",
		})
		dest := t.TempDir()
		err := extractArchive(pkg, dest)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid path")

		_, statErr := os.Stat(filepath.Join(filepath.Dir(dest), "escape.txt"))
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("rejects non-gzip input", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "plain.tar.gz")
		require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))
		assert.Error(t, extractArchive(path, t.TempDir()))
	})
}
