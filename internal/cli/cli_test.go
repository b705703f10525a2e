package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("positional path populates the config with defaults", func(t *testing.T) {
		t.Parallel()
		out := &bytes.Buffer{}

		cfg, shouldExit, err := Parse([]string{"workflow.hcl"}, out)

		require.NoError(t, err)
		require.False(t, shouldExit)
		assert.Equal(t, "workflow.hcl", cfg.WorkflowPath)
		assert.Equal(t, "modules", cfg.ModulesPath)
		assert.Equal(t, "json", cfg.LogFormat)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, 10, cfg.WorkerCount)
		assert.False(t, cfg.Serve)
		assert.Equal(t, ":8188", cfg.ListenAddr)
	})

	t.Run("workflow flag wins over the positional argument", func(t *testing.T) {
		t.Parallel()
		out := &bytes.Buffer{}

		cfg, _, err := Parse([]string{"-workflow", "a.hcl", "b.hcl"}, out)

		require.NoError(t, err)
		assert.Equal(t, "a.hcl", cfg.WorkflowPath)
	})

	t.Run("shorthand flag sets the path", func(t *testing.T) {
		t.Parallel()
		out := &bytes.Buffer{}

		cfg, _, err := Parse([]string{"-w", "short.hcl"}, out)

		require.NoError(t, err)
		assert.Equal(t, "short.hcl", cfg.WorkflowPath)
	})

	t.Run("no arguments prints usage and exits cleanly", func(t *testing.T) {
		t.Parallel()
		out := &bytes.Buffer{}

		cfg, shouldExit, err := Parse(nil, out)

		require.NoError(t, err)
		assert.True(t, shouldExit)
		assert.Nil(t, cfg)
		assert.Contains(t, out.String(), "Usage:")
	})

	t.Run("help flag exits cleanly", func(t *testing.T) {
		t.Parallel()
		out := &bytes.Buffer{}

		cfg, shouldExit, err := Parse([]string{"-h"}, out)

		require.NoError(t, err)
		assert.True(t, shouldExit)
		assert.Nil(t, cfg)
	})

	t.Run("serve mode needs no workflow path", func(t *testing.T) {
		t.Parallel()
		out := &bytes.Buffer{}

		cfg, shouldExit, err := Parse([]string{"-serve", "-listen", ":9999", "-store-dsn", "postgres://x"}, out)

		require.NoError(t, err)
		require.False(t, shouldExit)
		assert.True(t, cfg.Serve)
		assert.Equal(t, ":9999", cfg.ListenAddr)
		assert.Equal(t, "postgres://x", cfg.StoreDSN)
		assert.Empty(t, cfg.WorkflowPath)
	})

	t.Run("invalid log format is rejected with exit code 2", func(t *testing.T) {
		t.Parallel()
		out := &bytes.Buffer{}

		_, _, err := Parse([]string{"-log-format", "yaml", "w.hcl"}, out)

		require.Error(t, err)
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 2, exitErr.Code)
		assert.Contains(t, exitErr.Message, "invalid log-format")
	})

	t.Run("invalid log level is rejected with exit code 2", func(t *testing.T) {
		t.Parallel()
		out := &bytes.Buffer{}

		_, _, err := Parse([]string{"-log-level", "verbose", "w.hcl"}, out)

		require.Error(t, err)
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 2, exitErr.Code)
		assert.Contains(t, exitErr.Message, "invalid log-level")
	})

	t.Run("log level is lowercased before validation", func(t *testing.T) {
		t.Parallel()
		out := &bytes.Buffer{}

		cfg, _, err := Parse([]string{"-log-level", "DEBUG", "w.hcl"}, out)

		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.LogLevel)
	})

	t.Run("unknown flag is rejected with exit code 2", func(t *testing.T) {
		t.Parallel()
		out := &bytes.Buffer{}

		_, _, err := Parse([]string{"--no-such-flag"}, out)

		require.Error(t, err)
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 2, exitErr.Code)
	})
}
