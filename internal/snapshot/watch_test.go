package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReportsSettledDumps(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir, 100*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	found := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(path string) { found <- path })
	}()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	dump := filepath.Join(dir, "svc_20260314-092653.dmp")
	f, err := os.Create(dump)
	require.NoError(t, err)
	_, err = Encode(f, sampleSnapshot())
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case got := <-found:
		assert.Equal(t, dump, got)
		opened, err := Open(got)
		require.NoError(t, err)
		assert.Equal(t, "svc", opened.Manifest.App)
	case <-time.After(5 * time.Second):
		t.Fatal("dump was not reported")
	}

	select {
	case extra := <-found:
		t.Fatalf("unexpected second report %s", extra)
	case <-time.After(300 * time.Millisecond):
	}

	cancel()
	require.NoError(t, <-done)
}

func TestWatcher_MissingDir(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "absent"), 0)
	assert.Error(t, err)
}
