package schema

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mavenidx/mavenidx/internal/artifact"
)

// writeJar creates a zip at path carrying the given class entries.
func writeJar(t *testing.T, path string, classEntries ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, entry := range classEntries {
		w, err := zw.Create(entry)
		require.NoError(t, err)
		_, err = w.Write([]byte{0xCA, 0xFE, 0xBA, 0xBE})
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

// newJarContext builds an artifact context for a freshly written jar.
func newJarContext(t *testing.T, root, relPath string, classEntries ...string) *artifact.Context {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(relPath))
	writeJar(t, path, classEntries...)

	gav, err := artifact.M2GavCalculator{}.Gav(relPath)
	require.NoError(t, err)
	return artifact.NewContext("test", path, relPath, gav)
}
