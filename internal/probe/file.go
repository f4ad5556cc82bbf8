package probe

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/yaroslav/modekeeper/internal/logging"
	"github.com/yaroslav/modekeeper/internal/metrics"
	"github.com/yaroslav/modekeeper/models"
)

const filePerm = 0o644

// FileStore keeps probes as plain files on the local filesystem.
//
// Each target is a path. A path naming a directory (typically a mounted
// volume) resolves to DataFile inside it.
type FileStore struct {
	targets []string
	logger  *zap.Logger

	// For testing - allow overriding filesystem writes
	writeFile func(name string, data []byte, perm os.FileMode) error
}

// NewFileStore creates a store over the given paths. Empty paths are
// dropped.
func NewFileStore(logger *zap.Logger, paths ...string) *FileStore {
	var targets []string
	for _, p := range paths {
		if p != "" {
			targets = append(targets, p)
		}
	}
	return &FileStore{
		targets:   targets,
		logger:    logging.Component(logger, "probe"),
		writeFile: os.WriteFile,
	}
}

// Targets implements Store.
func (s *FileStore) Targets() []string {
	return append([]string(nil), s.targets...)
}

// ReadSignals implements Store.
func (s *FileStore) ReadSignals(ctx context.Context) []Signal {
	signals := make([]Signal, 0, len(s.targets))
	for _, target := range s.targets {
		path := resolve(target)
		signal := Signal{Target: target, Location: absolute(path)}

		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// No signal from this probe; the volume is not mounted everywhere.
		case err != nil:
			s.logger.Debug("probe unreadable",
				zap.String(logging.FieldTarget, signal.Location),
				zap.Error(err),
			)
		default:
			signal.Modes = ScanModes(string(data))
			for _, m := range signal.Modes {
				metrics.ProbeSignals.WithLabelValues(m.Token()).Inc()
			}
		}

		signals = append(signals, signal)
	}
	return signals
}

// WriteStatus implements Store.
func (s *FileStore) WriteStatus(ctx context.Context, target string, mode models.Mode, text string) error {
	if !parentExists(target) {
		return nil
	}

	path := resolve(target)
	if err := s.writeFile(path, []byte(FormatStatus(mode, text)), filePerm); err != nil {
		metrics.ProbeWrites.WithLabelValues("status", "error").Inc()
		return fmt.Errorf("failed to write status probe %s: %w", path, err)
	}

	metrics.ProbeWrites.WithLabelValues("status", "ok").Inc()
	return nil
}

// WriteHeartbeat implements Store. A missing file is treated as empty.
func (s *FileStore) WriteHeartbeat(ctx context.Context, target string, now time.Time) error {
	if !parentExists(target) {
		return nil
	}

	path := resolve(target)
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		metrics.ProbeWrites.WithLabelValues("heartbeat", "error").Inc()
		return fmt.Errorf("failed to read heartbeat probe %s: %w", path, err)
	}

	if err := s.writeFile(path, []byte(StampHeartbeat(string(data), now)), filePerm); err != nil {
		metrics.ProbeWrites.WithLabelValues("heartbeat", "error").Inc()
		return fmt.Errorf("failed to write heartbeat probe %s: %w", path, err)
	}

	metrics.ProbeWrites.WithLabelValues("heartbeat", "ok").Inc()
	return nil
}

func resolve(target string) string {
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		return filepath.Join(target, DataFile)
	}
	return target
}

func parentExists(target string) bool {
	_, err := os.Stat(filepath.Dir(filepath.Clean(target)))
	return err == nil
}

func absolute(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
