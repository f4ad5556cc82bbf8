package probe

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yaroslav/modekeeper/models"
)

func writeProbe(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readProbe(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestFileStore_ReadSignals(t *testing.T) {
	dir := t.TempDir()
	health := filepath.Join(dir, "health")
	volume := filepath.Join(dir, "volume")
	require.NoError(t, os.Mkdir(volume, 0o755))

	writeProbe(t, health, "Bot mode: maintenance\nupgrading")
	writeProbe(t, filepath.Join(volume, DataFile), "nothing to see\n")

	store := NewFileStore(zap.NewNop(), health, volume)
	signals := store.ReadSignals(context.Background())
	require.Len(t, signals, 2)

	assert.Equal(t, health, signals[0].Target)
	assert.Equal(t, health, signals[0].Location)
	assert.Equal(t, []models.Mode{models.ModeMaintenance}, signals[0].Modes)

	assert.Equal(t, volume, signals[1].Target)
	assert.Equal(t, filepath.Join(volume, DataFile), signals[1].Location)
	assert.Empty(t, signals[1].Modes)
}

func TestFileStore_ReadSignalsMissing(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(zap.NewNop(), filepath.Join(dir, "absent"), "")

	assert.Equal(t, []string{filepath.Join(dir, "absent")}, store.Targets())

	signals := store.ReadSignals(context.Background())
	require.Len(t, signals, 1)
	assert.Empty(t, signals[0].Modes)
}

func TestFileStore_WriteStatus(t *testing.T) {
	dir := t.TempDir()
	health := filepath.Join(dir, "health")
	volume := filepath.Join(dir, "volume")
	require.NoError(t, os.Mkdir(volume, 0o755))

	store := NewFileStore(zap.NewNop(), health, volume)
	ctx := context.Background()

	require.NoError(t, store.WriteStatus(ctx, health, models.ModeStopped, "bye"))
	require.NoError(t, store.WriteStatus(ctx, volume, models.ModeStopped, "bye"))

	assert.Equal(t, "Bot mode: stopped\nbye", readProbe(t, health))
	assert.Equal(t, "Bot mode: stopped\nbye", readProbe(t, filepath.Join(volume, DataFile)))
}

func TestFileStore_WriteStatusMissingParent(t *testing.T) {
	target := filepath.Join(t.TempDir(), "not-mounted", "data")
	store := NewFileStore(zap.NewNop(), target)

	require.NoError(t, store.WriteStatus(context.Background(), target, models.ModeKilled, ""))
	require.NoError(t, store.WriteHeartbeat(context.Background(), target, time.Now()))

	_, err := os.Stat(target)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestFileStore_WriteStatusPermissionDenied(t *testing.T) {
	target := filepath.Join(t.TempDir(), "health")
	store := NewFileStore(zap.NewNop(), target)
	store.writeFile = func(name string, data []byte, perm os.FileMode) error {
		return &fs.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
	}

	err := store.WriteStatus(context.Background(), target, models.ModeNormal, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrPermission)
	assert.True(t, strings.Contains(err.Error(), target))
}

func TestFileStore_WriteHeartbeat(t *testing.T) {
	dir := t.TempDir()
	now := time.Unix(1700000000, 0)
	ctx := context.Background()

	t.Run("numeric first line replaced", func(t *testing.T) {
		path := filepath.Join(dir, "numeric")
		writeProbe(t, path, "1000\nBot mode: normal\nhello\n")
		store := NewFileStore(zap.NewNop(), path)

		require.NoError(t, store.WriteHeartbeat(ctx, path, now))
		assert.Equal(t, "1700000000\nBot mode: normal\nhello\n", readProbe(t, path))
	})

	t.Run("non numeric first line kept", func(t *testing.T) {
		path := filepath.Join(dir, "text")
		writeProbe(t, path, "hello\n")
		store := NewFileStore(zap.NewNop(), path)

		require.NoError(t, store.WriteHeartbeat(ctx, path, now))
		assert.Equal(t, "1700000000\nhello\n", readProbe(t, path))
	})

	t.Run("missing file created", func(t *testing.T) {
		path := filepath.Join(dir, "fresh")
		store := NewFileStore(zap.NewNop(), path)

		require.NoError(t, store.WriteHeartbeat(ctx, path, now))
		assert.Equal(t, "1700000000\n", readProbe(t, path))
	})

	t.Run("status survives heartbeats", func(t *testing.T) {
		path := filepath.Join(dir, "health")
		store := NewFileStore(zap.NewNop(), path)

		require.NoError(t, store.WriteStatus(ctx, path, models.ModeMaintenance, "later"))
		require.NoError(t, store.WriteHeartbeat(ctx, path, now))
		require.NoError(t, store.WriteHeartbeat(ctx, path, now.Add(10*time.Second)))

		assert.Equal(t, "1700000010\nBot mode: maintenance\nlater", readProbe(t, path))
		assert.Equal(t, []models.Mode{models.ModeMaintenance}, store.ReadSignals(ctx)[0].Modes)
	})
}
