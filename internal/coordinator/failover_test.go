package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaroslav/modekeeper/models"
)

func TestLeader(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fresh := now.Add(-5 * time.Second)
	stale := now.Add(-time.Minute)
	staleAfter := 30 * time.Second

	tests := []struct {
		name  string
		order []string
		local string
		nodes []models.ClusterNode
		want  string
	}{
		{
			name:  "first fresh node wins",
			order: []string{"a", "b"},
			local: "b",
			nodes: []models.ClusterNode{
				{Name: "b", LastHeartbeat: fresh},
				{Name: "a", LastHeartbeat: fresh},
			},
			want: "a",
		},
		{
			name:  "stale node skipped",
			order: []string{"a", "b"},
			local: "b",
			nodes: []models.ClusterNode{
				{Name: "a", LastHeartbeat: stale, Active: true},
				{Name: "b", LastHeartbeat: fresh},
			},
			want: "b",
		},
		{
			name:  "disabled node skipped",
			order: []string{"a", "b"},
			local: "b",
			nodes: []models.ClusterNode{
				{Name: "a", LastHeartbeat: fresh, Disabled: true},
				{Name: "b", LastHeartbeat: fresh},
			},
			want: "b",
		},
		{
			name:  "transferring node skipped",
			order: []string{"a", "b"},
			local: "a",
			nodes: []models.ClusterNode{
				{Name: "a", LastHeartbeat: fresh, Active: true, Transferring: true},
				{Name: "b", LastHeartbeat: fresh},
			},
			want: "b",
		},
		{
			name:  "unregistered node skipped",
			order: []string{"a", "b"},
			local: "b",
			nodes: []models.ClusterNode{{Name: "b", LastHeartbeat: fresh}},
			want:  "b",
		},
		{
			name:  "empty order makes local the only candidate",
			local: "solo",
			nodes: []models.ClusterNode{
				{Name: "other", LastHeartbeat: fresh},
				{Name: "solo", LastHeartbeat: fresh},
			},
			want: "solo",
		},
		{
			name:  "nobody qualifies",
			order: []string{"a"},
			local: "b",
			nodes: []models.ClusterNode{{Name: "b", LastHeartbeat: fresh}},
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Leader(tt.order, tt.local, tt.nodes, now, staleAfter))
		})
	}
}

func TestFailover_TwoNodes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	config := Config{
		NodeOrder:    []string{"a", "b"},
		TickInterval: 10 * time.Second,
	}
	configA, configB := config, config
	configA.NodeName = "a"
	configB.NodeName = "b"

	a := f.coordinator(configA, newMemProbes("health"))
	b := f.coordinator(configB, newMemProbes("health"))

	_, err := f.db.ResetTransientFields(ctx, "a")
	require.NoError(t, err)
	_, err = f.db.ResetTransientFields(ctx, "b")
	require.NoError(t, err)

	state := func(name string) models.NodeState {
		t.Helper()
		row, err := f.db.Get(ctx, name)
		require.NoError(t, err)
		return row.State()
	}

	// Both fresh: a is first in order and claims the flag
	require.NoError(t, a.Tick(ctx))
	require.NoError(t, b.Tick(ctx))
	assert.True(t, a.IsActive())
	assert.False(t, b.IsActive())
	assert.Equal(t, models.NodeStateActive, state("a"))
	assert.Equal(t, models.NodeStateStandby, state("b"))

	// a stops heartbeating past the threshold
	f.clock.Advance(31 * time.Second)
	require.NoError(t, b.Tick(ctx))
	assert.True(t, b.IsActive())
	assert.Equal(t, models.NodeStateActive, state("b"))

	// a comes back and reclaims; b hands off over two ticks
	f.clock.Advance(time.Second)
	require.NoError(t, a.Tick(ctx))
	assert.True(t, a.IsActive())

	require.NoError(t, b.Tick(ctx))
	assert.Equal(t, models.NodeStateTransferring, state("b"))

	require.NoError(t, b.Tick(ctx))
	assert.False(t, b.IsActive())
	assert.Equal(t, models.NodeStateStandby, state("b"))
	assert.Equal(t, models.NodeStateActive, state("a"))
}

func TestFailover_DisabledNodeHandsOff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.coordinator(Config{NodeName: "a", NodeOrder: []string{"a", "b"}}, newMemProbes("health"))

	require.NoError(t, a.Tick(ctx))
	assert.True(t, a.IsActive())

	_, err := f.db.SetDisabled(ctx, "a", true)
	require.NoError(t, err)

	require.NoError(t, a.Tick(ctx))
	row, err := f.db.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.NodeStateTransferring, row.State())

	require.NoError(t, a.Tick(ctx))
	row, err = f.db.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.NodeStateStandby, row.State())
	assert.False(t, a.IsActive())

	// Still disabled, so it stays on standby
	require.NoError(t, a.Tick(ctx))
	assert.False(t, a.IsActive())
}

func TestFailover_ForcedTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.coordinator(Config{NodeName: "a"}, newMemProbes("health"))
	require.NoError(t, a.Tick(ctx))
	assert.True(t, a.IsActive())

	_, err := f.db.SetTransferring(ctx, "a", true)
	require.NoError(t, err)

	require.NoError(t, a.Tick(ctx))
	assert.False(t, a.IsActive())

	// Sole candidate again on the following tick
	require.NoError(t, a.Tick(ctx))
	assert.True(t, a.IsActive())
}
