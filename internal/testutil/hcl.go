package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// CoreManifest returns the on-disk manifest HCL for one of the built-in
// modules. Tests place it in their files map so they exercise the same
// manifests the binary ships with instead of a drifting copy.
func CoreManifest(t *testing.T, name string) string {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	require.True(t, ok, "could not locate caller to resolve the repo root")

	manifestPath := filepath.Join(filepath.Dir(thisFile), "..", "..", "modules", name, "manifest.hcl")
	content, err := os.ReadFile(manifestPath)
	require.NoError(t, err, "failed to read core manifest for module %q", name)
	return string(content)
}
