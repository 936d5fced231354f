package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "github.com/gfranca/barberhub/pkg/errors"
	"github.com/gfranca/barberhub/pkg/logger"
	"github.com/gfranca/barberhub/pkg/metrics"
)

const (
	// DefaultMaxRetries bounds how often a transient statement-cache failure is retried.
	DefaultMaxRetries = 2
	// DefaultBaseDelay is multiplied by the attempt number between retries.
	DefaultBaseDelay = 150 * time.Millisecond
)

// pgDuplicatePreparedStatement is the PostgreSQL error code raised when the
// connection pool reuses a statement name that is already cached server-side.
const pgDuplicatePreparedStatement = "42P05"

// IsStatementCacheError reports whether err carries the transient
// "prepared statement already exists" signature. Anything else, including
// gorm.ErrRecordNotFound, is not retryable.
func IsStatementCacheError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == pgDuplicatePreparedStatement {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "prepared statement") && strings.Contains(lower, "already exists")
}

// ConnectionManager owns the shared gorm handle and serialises reconnects so
// that concurrent failures trigger a single reconnect instead of a stampede.
type ConnectionManager struct {
	mu         sync.RWMutex
	db         *gorm.DB
	open       func() (*gorm.DB, error)
	generation uint64
	log        *zap.Logger
}

// NewConnectionManager opens the initial connection for cfg and keeps the
// factory around for reconnects.
func NewConnectionManager(cfg Config) (*ConnectionManager, error) {
	open := func() (*gorm.DB, error) { return Open(cfg) }
	return NewConnectionManagerWithOpener(open)
}

// NewConnectionManagerWithOpener builds a manager around a custom opener,
// primarily for tests.
func NewConnectionManagerWithOpener(open func() (*gorm.DB, error)) (*ConnectionManager, error) {
	if open == nil {
		return nil, errors.New("connection manager: opener is required")
	}

	db, err := open()
	if err != nil {
		return nil, fmt.Errorf("connection manager: initial open: %w", err)
	}

	return &ConnectionManager{
		db:   db,
		open: open,
		log:  logger.WithModule("database"),
	}, nil
}

// DB returns the current handle together with its generation. Callers hand the
// generation back to Reconnect so a reconnect performed by another goroutine
// in the meantime is not repeated.
func (m *ConnectionManager) DB() (*gorm.DB, uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db, m.generation
}

// Reconnect tears down the current connection and opens a fresh one, unless a
// concurrent caller already advanced past the observed generation.
func (m *ConnectionManager) Reconnect(seen uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.generation != seen {
		// Someone else reconnected while we were waiting on the lock.
		return nil
	}

	if sqlDB, err := m.db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	db, err := m.open()
	if err != nil {
		return fmt.Errorf("connection manager: reopen: %w", err)
	}

	m.db = db
	m.generation++
	metrics.DatabaseReconnects.Inc()
	m.log.Warn("database connection re-established", zap.Uint64("generation", m.generation))

	return nil
}

// Mode declares whether an operation is safe to replay after a transient
// failure. Non-idempotent writes run exactly once; a retried plain insert
// could double-insert after a failure that was reported but applied.
type Mode int

const (
	// ModeIdempotent marks reads, upserts, and keyed deletes.
	ModeIdempotent Mode = iota
	// ModeOnce marks plain inserts and multi-statement transactions.
	ModeOnce
)

// RetryConfig tunes the resilient access wrapper. Sleep overrides the
// backoff wait and exists for tests; when unset the wait is a timer that
// aborts on context cancellation.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	Sleep      func(time.Duration)
}

// Access executes persistence operations against the managed connection,
// transparently retrying the statement-cache failure class for idempotent
// operations with reconnect and linear backoff in between.
type Access struct {
	conns      *ConnectionManager
	maxRetries int
	baseDelay  time.Duration
	sleep      func(time.Duration)
	log        *zap.Logger
}

// NewAccess constructs the resilient wrapper around a connection manager.
func NewAccess(conns *ConnectionManager, cfg RetryConfig) (*Access, error) {
	if conns == nil {
		return nil, errors.New("resilient access: connection manager is required")
	}

	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = DefaultMaxRetries
	}

	delay := cfg.BaseDelay
	if delay <= 0 {
		delay = DefaultBaseDelay
	}

	return &Access{
		conns:      conns,
		maxRetries: retries,
		baseDelay:  delay,
		sleep:      cfg.Sleep,
		log:        logger.WithModule("database"),
	}, nil
}

// Run executes fn against the shared connection. Transient statement-cache
// failures are retried up to MaxRetries times for idempotent operations; any
// other error is returned on first occurrence.
func (a *Access) Run(ctx context.Context, mode Mode, fn func(db *gorm.DB) error) error {
	var lastErr error

	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		db, generation := a.conns.DB()

		err := fn(db.WithContext(ctx))
		if err == nil {
			return nil
		}

		if !IsStatementCacheError(err) {
			return err
		}

		lastErr = err

		if mode == ModeOnce {
			// The statement may have been applied before the failure surfaced;
			// replaying a non-idempotent write risks a duplicate.
			return apperrors.ErrDatabaseUnavailable.WithInternal(err)
		}

		if attempt == a.maxRetries {
			break
		}

		metrics.DatabaseRetries.Inc()
		a.log.Warn("transient statement-cache failure, reconnecting",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		if rerr := a.conns.Reconnect(generation); rerr != nil {
			return apperrors.ErrDatabaseUnavailable.WithInternal(rerr)
		}

		if err := a.wait(ctx, a.baseDelay*time.Duration(attempt+1)); err != nil {
			return err
		}
	}

	return apperrors.ErrDatabaseUnavailable.WithInternal(lastErr)
}

// wait blocks for the backoff delay or until the caller's context is
// cancelled, whichever comes first.
func (a *Access) wait(ctx context.Context, d time.Duration) error {
	if a.sleep != nil {
		a.sleep(d)
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Transaction runs fn inside a single database transaction. Transactions are
// never replayed.
func (a *Access) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return a.Run(ctx, ModeOnce, func(db *gorm.DB) error {
		return db.Transaction(fn)
	})
}

// Repository provides statically typed persistence helpers for one entity,
// routed through the resilient wrapper.
type Repository[T any] struct {
	access *Access
}

// NewRepository builds a typed repository on top of the resilient access layer.
func NewRepository[T any](access *Access) *Repository[T] {
	return &Repository[T]{access: access}
}

// First loads the first entity matching conds.
func (r *Repository[T]) First(ctx context.Context, conds ...any) (*T, error) {
	var entity T
	err := r.access.Run(ctx, ModeIdempotent, func(db *gorm.DB) error {
		return db.First(&entity, conds...).Error
	})
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

// Find loads all entities matching conds.
func (r *Repository[T]) Find(ctx context.Context, conds ...any) ([]T, error) {
	var entities []T
	err := r.access.Run(ctx, ModeIdempotent, func(db *gorm.DB) error {
		return db.Find(&entities, conds...).Error
	})
	if err != nil {
		return nil, err
	}
	return entities, nil
}

// Count returns the number of entities matching the query.
func (r *Repository[T]) Count(ctx context.Context, query any, args ...any) (int64, error) {
	var (
		entity T
		total  int64
	)
	err := r.access.Run(ctx, ModeIdempotent, func(db *gorm.DB) error {
		stmt := db.Model(&entity)
		if query != nil {
			stmt = stmt.Where(query, args...)
		}
		return stmt.Count(&total).Error
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// Create inserts the entity. Plain inserts are not replayed on transient failures.
func (r *Repository[T]) Create(ctx context.Context, entity *T) error {
	return r.access.Run(ctx, ModeOnce, func(db *gorm.DB) error {
		return db.Create(entity).Error
	})
}

// Save upserts the entity by primary key.
func (r *Repository[T]) Save(ctx context.Context, entity *T) error {
	return r.access.Run(ctx, ModeIdempotent, func(db *gorm.DB) error {
		return db.Save(entity).Error
	})
}

// Updates applies the given column values to the entity.
func (r *Repository[T]) Updates(ctx context.Context, entity *T, values map[string]any) error {
	return r.access.Run(ctx, ModeIdempotent, func(db *gorm.DB) error {
		return db.Model(entity).Updates(values).Error
	})
}

// Delete removes all entities matching the query.
func (r *Repository[T]) Delete(ctx context.Context, query any, args ...any) error {
	return r.access.Run(ctx, ModeIdempotent, func(db *gorm.DB) error {
		var entity T
		return db.Where(query, args...).Delete(&entity).Error
	})
}
