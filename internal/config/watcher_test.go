package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orchestrator.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scheduler:\n  max_concurrent_subtasks: 1\n"), 0o644))

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, zap.NewNop(), func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("scheduler:\n  max_concurrent_subtasks: 5\n"), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 5, cfg.Scheduler.MaxConcurrentSubtasks)
	case <-time.After(3 * time.Second):
		t.Fatal("config reload did not fire")
	}
}

func TestWatcherCloseCancelsPendingReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orchestrator.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o644))

	reloaded := make(chan struct{}, 1)
	w, err := NewWatcher(path, zap.NewNop(), func(*Config) {
		select {
		case reloaded <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)

	// trigger a reload, then close inside the debounce window
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o644))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, w.Close())

	select {
	case <-reloaded:
		t.Fatal("reload fired after Close")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orchestrator.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o644))

	reloaded := make(chan struct{}, 1)
	w, err := NewWatcher(path, zap.NewNop(), func(*Config) {
		select {
		case reloaded <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o644))

	select {
	case <-reloaded:
		t.Fatal("reload fired for an unrelated file")
	case <-time.After(500 * time.Millisecond):
	}
}
