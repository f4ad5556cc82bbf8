package settings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yaroslav/modekeeper/internal/storage/storagetest"
	"github.com/yaroslav/modekeeper/models"
)

func newTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()

	db := storagetest.NewDB(t, &Setting{})
	guard, _ := storagetest.NewGuard(t, db, zap.NewNop())

	store, err := New(guard, zap.NewNop(), ttl)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func TestStore_SetGet(t *testing.T) {
	for _, ttl := range []time.Duration{0, time.Minute} {
		t.Run(ttl.String(), func(t *testing.T) {
			store := newTestStore(t, ttl)
			ctx := context.Background()

			_, found, err := store.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, store.Set(ctx, "greeting", "hello"))
			value, found, err := store.Get(ctx, "greeting")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, "hello", value)

			require.NoError(t, store.Set(ctx, "greeting", "bye"))
			value, _, err = store.Get(ctx, "greeting")
			require.NoError(t, err)
			assert.Equal(t, "bye", value)
		})
	}
}

func TestStore_Mode(t *testing.T) {
	store := newTestStore(t, time.Minute)
	ctx := context.Background()

	_, ok, err := store.Mode(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetMode(ctx, models.ModeMaintenance))
	mode, ok, err := store.Mode(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.ModeMaintenance, mode)

	value, found, err := store.Get(ctx, KeyBotMode)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "maintenance", value)
}

func TestStore_ModeRejectsGarbage(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, KeyBotMode, "sleepy"))
	_, _, err := store.Mode(ctx)
	assert.ErrorIs(t, err, models.ErrUnknownMode)
}
