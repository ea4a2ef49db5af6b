package watcher_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/knit/internal/adapters/watcher"
	"go.trai.ch/knit/internal/core/domain"
	"go.trai.ch/knit/internal/core/ports"
	"go.trai.ch/knit/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func TestWatcher_ReportsWrites(t *testing.T) {
	logger := mocks.NewMockLogger(gomock.NewController(t))
	logger.EXPECT().Warn(gomock.Any()).AnyTimes()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.js")
	require.NoError(t, os.WriteFile(path, []byte("1"), domain.FilePerm))

	w, err := watcher.NewWatcher(logger)
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.Start(ctx, []string{dir}))
	require.NoError(t, w.Add(dir), "adding a watched directory is a no-op")

	require.NoError(t, os.WriteFile(path, []byte("2"), domain.FilePerm))

	var got ports.WatchEvent
	for ev := range w.Events() {
		if ev.Path == path {
			got = ev
			break
		}
	}
	assert.Equal(t, path, got.Path)
	assert.Contains(t, []ports.WatchOp{ports.OpWrite, ports.OpCreate}, got.Operation)
}

func TestWatcher_AddMissingDirectory(t *testing.T) {
	logger := mocks.NewMockLogger(gomock.NewController(t))
	w, err := watcher.NewWatcher(logger)
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	assert.Error(t, w.Add(filepath.Join(t.TempDir(), "missing")))
}
