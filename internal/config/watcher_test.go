package config

import (
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnChangeAndSkipsIdenticalContent(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "port: 9000\n")

	mgr := NewManager(path)
	_, err := mgr.Load()
	require.NoError(t, err)

	var reloads int
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	watcher, err := NewWatcher(mgr, logger, func(cfg *Config) { reloads++ })
	require.NoError(t, err)
	defer watcher.Stop()

	go watcher.Start()

	require.NoError(t, os.WriteFile(path, []byte("port: 9001\n"), 0644))

	require.Eventually(t, func() bool { return reloads == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("port: 9001\n"), 0644))
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, reloads)
}
