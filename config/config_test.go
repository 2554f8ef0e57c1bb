package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsUsable(t *testing.T) {
	c := Default()
	require.Greater(t, c.Frames.Pages, 0)
	require.Greater(t, c.Swap.Slots, 0)
	require.Empty(t, c.Metrics.ListenAddr, "metrics must be off unless explicitly configured")
}

func TestLoadOverlaysOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vmkaist.yaml")
	yaml := "swap:\n  path: /tmp/vmkaist.swap\n  slots: 4096\nmetrics:\n  listen_addr: \":9575\"\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	c, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "/tmp/vmkaist.swap", c.Swap.Path)
	require.Equal(t, 4096, c.Swap.Slots)
	require.Equal(t, ":9575", c.Metrics.ListenAddr)
	require.Equal(t, Default().Frames.Pages, c.Frames.Pages, "fields absent from the file must keep their defaults")
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
