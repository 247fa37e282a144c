package bringup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDefinitionPath_AbsoluteNamePassesThrough(t *testing.T) {
	path, err := ResolveDefinitionPath([]string{"/some/dir"}, "/abs/probe.rom")
	require.NoError(t, err)
	assert.Equal(t, "/abs/probe.rom", path)
}

func TestResolveDefinitionPath_FirstDirectoryWins(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dirB, "probe.rom"), []byte("rom-b"), 0o644))

	path, err := ResolveDefinitionPath([]string{dirA, dirB}, "probe.rom")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dirB, "probe.rom"), path)

	require.NoError(t, os.WriteFile(filepath.Join(dirA, "probe.rom"), []byte("rom-a"), 0o644))
	path, err = ResolveDefinitionPath([]string{dirA, dirB}, "probe.rom")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dirA, "probe.rom"), path)
}

func TestResolveDefinitionPath_NotFoundInAnyDirectory(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()

	_, err := ResolveDefinitionPath([]string{dirA, dirB}, "missing.rom")
	assert.Error(t, err)
}
