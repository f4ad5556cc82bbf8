package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"

	"github.com/yaroslav/modekeeper/internal/storage/storagetest"
	"github.com/yaroslav/modekeeper/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRegistry(t *testing.T) (*Registry, *fakeClock) {
	t.Helper()

	db := storagetest.NewDB(t, &models.ClusterNode{})
	core, _ := observer.New(zap.InfoLevel)
	logger := zap.New(core)
	guard, _ := storagetest.NewGuard(t, db, logger)

	clock := &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	return New(guard, logger, WithClock(clock.Now)), clock
}

func TestCreate_LowercasesName(t *testing.T) {
	reg, clock := newTestRegistry(t)
	ctx := context.Background()

	row, err := reg.Create(ctx, "NodeA", true)
	require.NoError(t, err)
	assert.Equal(t, "nodea", row.Name)
	assert.True(t, row.Active)
	assert.False(t, row.Disabled)
	assert.False(t, row.Transferring)
	assert.True(t, row.LastHeartbeat.Equal(clock.Now()))

	// Duplicate key under a different case
	_, err = reg.Create(ctx, "NODEA", false)
	assert.Error(t, err)
}

func TestResetTransientFields_CreatesAndIsIdempotent(t *testing.T) {
	reg, clock := newTestRegistry(t)
	ctx := context.Background()

	row, err := reg.ResetTransientFields(ctx, "fresh")
	require.NoError(t, err)
	assert.False(t, row.Active)
	assert.False(t, row.Transferring)
	assert.True(t, row.LastHeartbeat.Equal(clock.Now()))

	clock.Advance(time.Minute)

	row, err = reg.ResetTransientFields(ctx, "fresh")
	require.NoError(t, err)
	assert.False(t, row.Active)
	assert.False(t, row.Transferring)
	assert.True(t, row.LastHeartbeat.Equal(clock.Now()), "heartbeat must be refreshed")

	all, err := reg.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestResetTransientFields_ClearsActiveAndTransferring(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.UpdateActive(ctx, "a", true)
	require.NoError(t, err)
	_, err = reg.SetTransferring(ctx, "a", true)
	require.NoError(t, err)
	_, err = reg.SetDisabled(ctx, "a", true)
	require.NoError(t, err)

	row, err := reg.ResetTransientFields(ctx, "a")
	require.NoError(t, err)
	assert.False(t, row.Active)
	assert.False(t, row.Transferring)
	assert.True(t, row.Disabled, "operator override survives a restart")
}

func TestUpdateActive_CaseInsensitiveKey(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.UpdateActive(ctx, "NodeA", true)
	require.NoError(t, err)
	_, err = reg.UpdateActive(ctx, "nodea", false)
	require.NoError(t, err)

	all, err := reg.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "nodea", all[0].Name)
	assert.False(t, all[0].Active)
}

func TestUpdateActive_CreatesWithRequestedFlag(t *testing.T) {
	reg, _ := newTestRegistry(t)

	row, err := reg.UpdateActive(context.Background(), "b", true)
	require.NoError(t, err)
	assert.True(t, row.Active)
	assert.Equal(t, models.NodeStateActive, row.State())
}

func TestTouchHeartbeat_OnlyMovesTimestamp(t *testing.T) {
	reg, clock := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.UpdateActive(ctx, "a", true)
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	row, err := reg.TouchHeartbeat(ctx, "A")
	require.NoError(t, err)
	assert.True(t, row.Active)
	assert.True(t, row.LastHeartbeat.Equal(clock.Now()))

	// Unknown nodes are created inactive
	row, err = reg.TouchHeartbeat(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, row.Active)
}

func TestGet_NoCreationSideEffect(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	row, err := reg.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, row)

	all, err := reg.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = reg.Create(ctx, "Present", false)
	require.NoError(t, err)
	row, err = reg.Get(ctx, "PRESENT")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "present", row.Name)
}

func TestInvalidNames(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.TouchHeartbeat(ctx, "   ")
	assert.ErrorIs(t, err, models.ErrInvalidNodeName)

	long := make([]byte, MaxNodeNameLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = reg.Get(ctx, string(long))
	assert.ErrorIs(t, err, models.ErrInvalidNodeName)
}

func TestConcurrentTouches(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Create(ctx, "shared", false)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.TouchHeartbeat(ctx, "shared")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	all, err := reg.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestConcurrentFirstTouches(t *testing.T) {
	db := storagetest.NewPooledDB(t, 4, &models.ClusterNode{})
	guard, term := storagetest.NewGuard(t, db, nil)
	reg := New(guard, zap.NewNop())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			row, err := reg.TouchHeartbeat(ctx, "newcomer")
			if assert.NoError(t, err) {
				assert.Equal(t, "newcomer", row.Name)
			}
		}()
	}
	wg.Wait()

	all, err := reg.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Empty(t, term.Calls())
}

func TestInsertOrLoad_ExistingRowIsLoaded(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Create(ctx, "taken", true)
	require.NoError(t, err)

	var row *models.ClusterNode
	err = reg.guard.Run(ctx, "test.insert_or_load", func(tx *gorm.DB) error {
		var err error
		row, err = reg.insertOrLoad(tx, "taken", false)
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "taken", row.Name)
	assert.True(t, row.Active, "the row inserted first wins")

	all, err := reg.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStaleAndPrune(t *testing.T) {
	reg, clock := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.UpdateActive(ctx, "old-standby", false)
	require.NoError(t, err)
	_, err = reg.UpdateActive(ctx, "old-active", true)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	_, err = reg.TouchHeartbeat(ctx, "fresh")
	require.NoError(t, err)

	cutoff := clock.Now().Add(-time.Minute)
	stale, err := reg.Stale(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, stale, 2)

	deleted, err := reg.Prune(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	rows, err := reg.GetAll(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, row.Name)
	}
	assert.ElementsMatch(t, []string{"old-active", "fresh"}, names)
}
