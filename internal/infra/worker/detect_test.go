package worker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))
}

func TestDetectModePrefersSidecar(t *testing.T) {
	dir := t.TempDir()
	exeDir := filepath.Join(dir, "app")
	touch(t, filepath.Join(exeDir, "worker_daemon", sidecarName()))
	// A script higher up must lose to the packaged executable.
	touch(t, filepath.Join(dir, scriptName))

	mode, err := DetectModeAt(exeDir)
	require.NoError(t, err)
	require.Equal(t, Production, mode.Kind)
	require.Contains(t, mode.Path, sidecarName())
}

func TestDetectModeFindsScript(t *testing.T) {
	dir := t.TempDir()
	exeDir := filepath.Join(dir, "a", "b", "c")
	require.NoError(t, os.MkdirAll(exeDir, 0o755))
	touch(t, filepath.Join(dir, scriptName))

	mode, err := DetectModeAt(exeDir)
	require.NoError(t, err)
	require.Equal(t, Development, mode.Kind)
	require.Equal(t, filepath.Join(dir, scriptName), mode.Path)
}

func TestDetectModeNotFoundFallback(t *testing.T) {
	exeDir := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.MkdirAll(exeDir, 0o755))

	mode, err := DetectModeAt(exeDir)
	require.ErrorIs(t, err, ErrWorkerNotFound)
	require.Equal(t, Development, mode.Kind)
	require.NotEmpty(t, mode.Path)
}

func TestDetectModeOnefile(t *testing.T) {
	exeDir := t.TempDir()
	touch(t, filepath.Join(exeDir, sidecarName()))

	mode, err := DetectModeAt(exeDir)
	require.NoError(t, err)
	require.Equal(t, Production, mode.Kind)
}
