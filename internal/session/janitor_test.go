package session_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/specs-feup/weaver/internal/session"

	"github.com/stretchr/testify/require"
)

func makeSession(t *testing.T, m *session.Manager, id string, age time.Duration) string {
	t.Helper()
	path := m.Path(id)
	require.NoError(t, os.MkdirAll(filepath.Join(path, "woven_code"), 0o755))
	when := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, when, when))
	return path
}

func TestJanitor_Sweep(t *testing.T) {
	t.Parallel()
	m := session.NewManager(t.TempDir())

	stale := makeSession(t, m, "stale", 2*time.Hour)
	fresh := makeSession(t, m, "fresh", time.Minute)
	held := makeSession(t, m, "held", 2*time.Hour)
	_, err := m.Acquire(held)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Release(held) })

	var reported int
	j := session.NewJanitor(m, time.Hour).WithSweptFunc(func(n int) { reported += n })
	n, err := j.Sweep(t.Context())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 1, reported)

	require.NoDirExists(t, stale)
	require.DirExists(t, fresh)
	require.DirExists(t, held)
}

func TestJanitor_MissingBase(t *testing.T) {
	t.Parallel()
	m := session.NewManager(filepath.Join(t.TempDir(), "does-not-exist"))
	n, err := session.NewJanitor(m, time.Hour).Sweep(t.Context())
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestJanitor_Run(t *testing.T) {
	t.Parallel()
	m := session.NewManager(t.TempDir())
	stale := makeSession(t, m, "stale", 2*time.Hour)

	ctx, cancel := context.WithCancel(t.Context())
	swept := make(chan int, 16)
	j := session.NewJanitor(m, time.Hour).WithSweptFunc(func(n int) { swept <- n })

	errCh := make(chan error, 1)
	go func() { errCh <- j.Run(ctx, "@every 1h") }()

	select {
	case n := <-swept:
		require.Equal(t, 1, n)
	case <-time.After(5 * time.Second):
		t.Fatal("janitor did not sweep on start")
	}
	require.NoDirExists(t, stale)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestJanitor_RunInvalidSchedule(t *testing.T) {
	t.Parallel()
	m := session.NewManager(t.TempDir())
	err := session.NewJanitor(m, time.Hour).Run(t.Context(), "whenever")
	require.Error(t, err)
}
