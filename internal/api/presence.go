package api

import (
	"context"
	"sync"
	"time"

	"github.com/yaroslav/modekeeper/internal/coordinator"
)

// StatusBoard is the presence shown on the HTTP status page. It is the
// default coordinator.Presence when no chat connection is wired in.
type StatusBoard struct {
	mu       sync.RWMutex
	status   coordinator.PresenceStatus
	activity string
	updated  time.Time
}

// NewStatusBoard returns a board showing an idle presence until the
// coordinator sets one.
func NewStatusBoard() *StatusBoard {
	return &StatusBoard{status: coordinator.PresenceIdle}
}

// SetPresence implements coordinator.Presence.
func (b *StatusBoard) SetPresence(ctx context.Context, status coordinator.PresenceStatus, activity string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.status = status
	b.activity = activity
	b.updated = time.Now()
	return nil
}

// Presence returns the last presence set.
func (b *StatusBoard) Presence() (coordinator.PresenceStatus, string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status, b.activity
}

// Updated returns when the presence last changed.
func (b *StatusBoard) Updated() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updated
}
