package session_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/specs-feup/weaver/internal/session"

	"github.com/stretchr/testify/require"
)

func TestManager(t *testing.T) {
	t.Parallel()
	base := filepath.Join(t.TempDir(), "temp")
	m := session.NewManager(base)

	path := m.Path("0a1b2c3d")
	require.Equal(t, filepath.Join(base, "0a1b2c3d"), path)

	got, err := m.Acquire(path)
	require.NoError(t, err)
	require.Equal(t, path, got)
	require.DirExists(t, path)
	require.True(t, m.Active(path))

	_, err = m.Acquire(path + "/")
	require.ErrorIs(t, err, session.ErrInUse)

	require.NoError(t, os.MkdirAll(filepath.Join(path, "woven_code"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "woven_code", "main.cpp"), []byte("x"), 0o644))

	require.NoError(t, m.Release(path))
	require.NoDirExists(t, path)
	require.False(t, m.Active(path))

	// idempotent
	require.NoError(t, m.Release(path))
	require.NoError(t, m.Release(m.Path("never-created")))

	// reusable after release
	_, err = m.Acquire(path)
	require.NoError(t, err)
	require.NoError(t, m.Release(path))
}

func TestManager_AcquireError(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	m := session.NewManager(file)
	path := m.Path("abc")
	_, err := m.Acquire(path)
	require.Error(t, err)
	require.False(t, m.Active(path))
}
