// Package storagetest provides SQLite-backed fixtures for packages that
// talk to the shared database.
package storagetest

import (
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yaroslav/modekeeper/internal/storage"
)

// NewDB opens a file-backed SQLite database in a temp dir and migrates the
// given models into it.
func NewDB(t testing.TB, models ...interface{}) *gorm.DB {
	t.Helper()
	return open(t, "?_journal_mode=WAL&_busy_timeout=5000", 1, models)
}

// NewPooledDB is NewDB with up to conns open connections. Transactions
// start with BEGIN IMMEDIATE so concurrent writers wait on the busy timeout
// instead of failing on a stale snapshot.
func NewPooledDB(t testing.TB, conns int, models ...interface{}) *gorm.DB {
	t.Helper()
	return open(t, "?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate", conns, models)
}

func open(t testing.TB, params string, conns int, models []interface{}) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path+params), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get database instance: %v", err)
	}
	sqlDB.SetMaxOpenConns(conns)
	t.Cleanup(func() { sqlDB.Close() })

	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			t.Fatalf("failed to migrate test database: %v", err)
		}
	}

	return db
}

// Terminator records Terminate calls instead of exiting.
type Terminator struct {
	mu    sync.Mutex
	codes []int
}

// Terminate implements storage.Terminator.
func (r *Terminator) Terminate(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes = append(r.codes, code)
}

// Calls returns the recorded exit codes.
func (r *Terminator) Calls() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.codes...)
}

// NewGuard returns a guard over db whose terminator only records calls.
func NewGuard(t testing.TB, db *gorm.DB, logger *zap.Logger) (*storage.Guard, *Terminator) {
	t.Helper()

	if logger == nil {
		logger = zap.NewNop()
	}
	term := &Terminator{}
	return storage.NewGuard(db, logger, storage.WithTerminator(term)), term
}
