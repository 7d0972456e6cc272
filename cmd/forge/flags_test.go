package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRootFileWalksUpward(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, rootFileName), []byte(""), 0o644))

	found, err := resolveRootFile(nested, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, rootFileName), found)
}

func TestResolveRootFileExplicitOverride(t *testing.T) {
	dir := t.TempDir()
	explicit := filepath.Join(dir, "custom.lua")
	require.NoError(t, os.WriteFile(explicit, []byte(""), 0o644))

	found, err := resolveRootFile(dir, explicit)
	require.NoError(t, err)
	assert.Equal(t, explicit, found)
}

func TestResolveRootFileNotFound(t *testing.T) {
	dir := t.TempDir()
	_, err := resolveRootFile(dir, "")
	require.Error(t, err)
}

func TestSplitAssignments(t *testing.T) {
	assignments, rest := splitAssignments([]string{"debug=1", "arch=x64", "mytarget"})
	assert.Equal(t, map[string]string{"debug": "1", "arch": "x64"}, assignments)
	assert.Equal(t, []string{"mytarget"}, rest)
}

func TestSplitAssignmentsNoAssignments(t *testing.T) {
	assignments, rest := splitAssignments([]string{"mytarget"})
	assert.Empty(t, assignments)
	assert.Equal(t, []string{"mytarget"}, rest)
}
