package storage

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
	"gorm.io/gorm"

	"github.com/yaroslav/modekeeper/internal/logging"
	"github.com/yaroslav/modekeeper/internal/metrics"
)

// Terminator ends the process after a fatal storage error.
type Terminator interface {
	Terminate(code int)
}

// TerminatorFunc adapts a function to Terminator.
type TerminatorFunc func(code int)

// Terminate calls f(code).
func (f TerminatorFunc) Terminate(code int) {
	f(code)
}

// SignalTerminator sends SIGTERM to the own process and exits with code.
// An external supervisor is expected to restart the process with a fresh
// connection pool.
//
// When the caller has routed SIGTERM through signal.NotifyContext the
// signal only cancels that context. os.Exit then ends the process with a
// non-zero status and deferred cleanup, including the pool close, does
// not run.
type SignalTerminator struct{}

// Terminate implements Terminator.
func (SignalTerminator) Terminate(code int) {
	_ = unix.Kill(unix.Getpid(), unix.SIGTERM)
	os.Exit(code)
}

// Guard runs units of work in a transactional session and turns fatal
// storage errors into process termination.
type Guard struct {
	db         *gorm.DB
	logger     *zap.Logger
	terminator Terminator
}

// GuardOption customises a Guard.
type GuardOption func(*Guard)

// WithTerminator replaces the default SignalTerminator.
func WithTerminator(t Terminator) GuardOption {
	return func(g *Guard) {
		g.terminator = t
	}
}

// NewGuard creates a guard over db.
func NewGuard(db *gorm.DB, logger *zap.Logger, opts ...GuardOption) *Guard {
	g := &Guard{
		db:         db,
		logger:     logging.Component(logger, "database"),
		terminator: SignalTerminator{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// DB returns the underlying handle. Work that should reach the fatal
// classifier goes through Run or Session instead.
func (g *Guard) DB() *gorm.DB {
	return g.db
}

// Run executes fn inside one transaction. The transaction commits when fn
// returns nil and rolls back otherwise. A panic inside fn rolls back and
// keeps propagating; nothing is committed.
//
// When the outcome classifies as a FatalStorageError the guard logs a
// warning and terminates the process. The error is still returned for
// terminators that do not exit.
func (g *Guard) Run(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	start := time.Now()
	err := g.db.WithContext(ctx).Transaction(fn)
	return g.finish(op, start, err)
}

// Session executes fn on a plain session without a transaction, for
// statements that cannot run inside one such as schema migration and
// VACUUM. Errors are classified exactly like Run.
func (g *Guard) Session(ctx context.Context, op string, fn func(db *gorm.DB) error) error {
	start := time.Now()
	err := fn(g.db.WithContext(ctx))
	return g.finish(op, start, err)
}

func (g *Guard) finish(op string, start time.Time, err error) error {
	metrics.DBQueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	err = Classify(op, err)

	var fatal *FatalStorageError
	switch {
	case err == nil:
		metrics.DBQueriesTotal.WithLabelValues(op, "ok").Inc()
	case errors.As(err, &fatal):
		metrics.DBQueriesTotal.WithLabelValues(op, "fatal").Inc()
		metrics.DBFatalErrors.WithLabelValues(strconv.Itoa(int(fatal.Code))).Inc()
		g.logger.Warn("database not usable anymore, terminating",
			zap.String(logging.FieldOperation, op),
			zap.Uint16(logging.FieldErrorCode, fatal.Code),
			zap.Error(fatal.Err),
		)
		g.terminator.Terminate(1)
	default:
		metrics.DBQueriesTotal.WithLabelValues(op, "error").Inc()
	}

	return err
}

// ReportPoolStats copies connection pool statistics into the DB gauges.
func (g *Guard) ReportPoolStats() {
	sqlDB, err := g.db.DB()
	if err != nil {
		return
	}
	stats := sqlDB.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
	metrics.DBConnectionsInUse.Set(float64(stats.InUse))
}

// Ping checks connectivity for readiness probes.
func (g *Guard) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
