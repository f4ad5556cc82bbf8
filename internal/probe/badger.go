package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/yaroslav/modekeeper/internal/logging"
	"github.com/yaroslav/modekeeper/internal/metrics"
	"github.com/yaroslav/modekeeper/models"
)

// keyPrefix namespaces probe entries in the key/value store.
const keyPrefix = "probe/"

// BadgerStore keeps probes in an embedded badger database instead of
// files. Supervisors that can read the database use it in place of a
// shared volume.
type BadgerStore struct {
	db      *badger.DB
	targets []string
	logger  *zap.Logger
}

// OpenBadgerStore opens (or creates) a badger database in dir.
func OpenBadgerStore(dir string, logger *zap.Logger, targets ...string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithLoggingLevel(badger.ERROR).
		WithSyncWrites(true)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	return NewBadgerStore(db, logger, targets...), nil
}

// NewBadgerStore wraps an already open database.
func NewBadgerStore(db *badger.DB, logger *zap.Logger, targets ...string) *BadgerStore {
	var kept []string
	for _, t := range targets {
		if t != "" {
			kept = append(kept, t)
		}
	}
	return &BadgerStore{
		db:      db,
		targets: kept,
		logger:  logging.Component(logger, "probe"),
	}
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// Targets implements Store.
func (s *BadgerStore) Targets() []string {
	return append([]string(nil), s.targets...)
}

// ReadSignals implements Store.
func (s *BadgerStore) ReadSignals(ctx context.Context) []Signal {
	signals := make([]Signal, 0, len(s.targets))
	for _, target := range s.targets {
		signal := Signal{Target: target, Location: "badger:" + key(target)}

		value, found, err := s.get(target)
		switch {
		case err != nil:
			s.logger.Debug("probe unreadable",
				zap.String(logging.FieldTarget, signal.Location),
				zap.Error(err),
			)
		case found:
			signal.Modes = ScanModes(string(value))
			for _, m := range signal.Modes {
				metrics.ProbeSignals.WithLabelValues(m.Token()).Inc()
			}
		}

		signals = append(signals, signal)
	}
	return signals
}

// WriteStatus implements Store.
func (s *BadgerStore) WriteStatus(ctx context.Context, target string, mode models.Mode, text string) error {
	if err := s.set(target, []byte(FormatStatus(mode, text))); err != nil {
		metrics.ProbeWrites.WithLabelValues("status", "error").Inc()
		return fmt.Errorf("failed to write status probe %s: %w", key(target), err)
	}
	metrics.ProbeWrites.WithLabelValues("status", "ok").Inc()
	return nil
}

// WriteHeartbeat implements Store. The read and the write happen in one
// badger transaction.
func (s *BadgerStore) WriteHeartbeat(ctx context.Context, target string, now time.Time) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		var current string
		item, err := txn.Get([]byte(key(target)))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error {
				current = string(val)
				return nil
			}); err != nil {
				return err
			}
		}
		return txn.Set([]byte(key(target)), []byte(StampHeartbeat(current, now)))
	})
	if err != nil {
		metrics.ProbeWrites.WithLabelValues("heartbeat", "error").Inc()
		return fmt.Errorf("failed to write heartbeat probe %s: %w", key(target), err)
	}
	metrics.ProbeWrites.WithLabelValues("heartbeat", "ok").Inc()
	return nil
}

// Content returns the raw stored value for target.
func (s *BadgerStore) Content(target string) (string, bool, error) {
	value, found, err := s.get(target)
	return string(value), found, err
}

func (s *BadgerStore) get(target string) ([]byte, bool, error) {
	var value []byte
	var found bool

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key(target)))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}

		found = true
		return item.Value(func(val []byte) error {
			value = append([]byte{}, val...)
			return nil
		})
	})
	return value, found, err
}

func (s *BadgerStore) set(target string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key(target)), value)
	})
}

func key(target string) string {
	return keyPrefix + target
}
