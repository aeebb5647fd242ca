package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherReportsEdits(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.yaml"), []byte("physics: {}\n"), 0o644))

	select {
	case got := <-w.Events:
		require.Equal(t, "settings.yaml", filepath.Base(got))
	case err := <-w.Errors:
		t.Fatalf("watcher error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("no event for the edited file")
	}

	// The create and write of a single save debounce into one event.
	select {
	case got, ok := <-w.Events:
		if ok {
			t.Fatalf("duplicate event for %s", got)
		}
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("scratch"), 0o644))

	select {
	case got := <-w.Events:
		t.Fatalf("unexpected event for %s", got)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherCloseTwice(t *testing.T) {
	w, err := NewWatcher(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, ok := <-w.Events
	require.False(t, ok)
	_, ok2 := <-w.Errors
	require.False(t, ok2)
}
