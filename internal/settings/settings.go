// Package settings persists small key/value settings in the shared
// database, with a read-through in-memory cache.
package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yaroslav/modekeeper/internal/logging"
	"github.com/yaroslav/modekeeper/internal/storage"
	"github.com/yaroslav/modekeeper/models"
)

// KeyBotMode holds the current mode token.
const KeyBotMode = "bot_mode"

// Setting is one row of the settings table.
type Setting struct {
	Key   string `gorm:"column:key;primaryKey;size:64" json:"key"`
	Value string `gorm:"column:value;type:text" json:"value"`
}

// TableName specifies the table name for GORM.
func (Setting) TableName() string {
	return "settings"
}

// Store reads and writes settings through the storage guard.
type Store struct {
	guard  *storage.Guard
	cache  *ristretto.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// New creates a settings store. A non-positive ttl disables caching.
func New(guard *storage.Guard, logger *zap.Logger, ttl time.Duration) (*Store, error) {
	s := &Store{
		guard:  guard,
		ttl:    ttl,
		logger: logging.Component(logger, "settings"),
	}

	if ttl > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: 1e4,     // settings are a handful of keys
			MaxCost:     1 << 20, // 1 MiB of values
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create settings cache: %w", err)
		}
		s.cache = cache
	}

	return s, nil
}

// Close releases the cache.
func (s *Store) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
}

// Migrate creates or updates the settings table.
func (s *Store) Migrate(ctx context.Context) error {
	err := s.guard.Session(ctx, "settings.migrate", func(db *gorm.DB) error {
		return db.AutoMigrate(&Setting{})
	})
	if err != nil {
		return fmt.Errorf("failed to migrate settings: %w", err)
	}
	return nil
}

// Set upserts key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	err := s.guard.Run(ctx, "settings.set", func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).
			Create(&Setting{Key: key, Value: value}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	if s.cache != nil {
		s.cache.Del(key)
		s.cache.SetWithTTL(key, value, int64(len(value)), s.ttl)
		s.cache.Wait()
	}

	s.logger.Debug("setting updated", zap.String("key", key))
	return nil
}

// Get returns the value of key. found is false when the key was never set.
func (s *Store) Get(ctx context.Context, key string) (value string, found bool, err error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			return v.(string), true, nil
		}
	}

	err = s.guard.Run(ctx, "settings.get", func(tx *gorm.DB) error {
		var row Setting
		err := tx.Where(&Setting{Key: key}).Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		value, found = row.Value, true
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}

	if found && s.cache != nil {
		s.cache.SetWithTTL(key, value, int64(len(value)), s.ttl)
		s.cache.Wait()
	}
	return value, found, nil
}

// SetMode persists mode under KeyBotMode.
func (s *Store) SetMode(ctx context.Context, mode models.Mode) error {
	return s.Set(ctx, KeyBotMode, mode.Token())
}

// Mode returns the persisted mode. ok is false when none was stored.
func (s *Store) Mode(ctx context.Context) (mode models.Mode, ok bool, err error) {
	token, found, err := s.Get(ctx, KeyBotMode)
	if err != nil || !found {
		return "", false, err
	}
	mode, err = models.ParseMode(token)
	if err != nil {
		return "", false, err
	}
	return mode, true, nil
}
