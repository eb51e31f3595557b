package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresLocker uses session level advisory locks. Each held lock pins one
// pool connection until it is released.
type PostgresLocker struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresLocker wraps pool. A nil logger disables release warnings.
func NewPostgresLocker(pool *pgxpool.Pool, logger *zap.Logger) *PostgresLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresLocker{pool: pool, logger: logger}
}

// OpenPostgresLocker creates a pool for dsn that only serves advisory locks.
// Held locks pin connections, so sharing a pool with queries can starve
// transactions that run while the lock is held.
func OpenPostgresLocker(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresLocker, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("lock: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("lock: ping: %w", err)
	}
	return NewPostgresLocker(pool, logger), nil
}

// Close closes the underlying pool.
func (l *PostgresLocker) Close() error {
	l.pool.Close()
	return nil
}

// Lock blocks in pg_advisory_lock until granted or ctx is done.
func (l *PostgresLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Join(ErrTimeout, ctxErr)
		}
		return nil, fmt.Errorf("lock: acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock(hashtext($1))`, key); err != nil {
		// A cancelled wait leaves the session in an unknown state.
		conn.Hijack().Close(context.Background())
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Join(ErrTimeout, ctxErr)
		}
		return nil, fmt.Errorf("lock: advisory lock %s: %w", key, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if _, err := conn.Exec(releaseCtx, `SELECT pg_advisory_unlock(hashtext($1))`, key); err != nil {
				l.logger.Warn("failed to release advisory lock", zap.String("key", key), zap.Error(err))
				conn.Hijack().Close(context.Background())
				return
			}
			conn.Release()
		})
	}, nil
}
