// Package persist mirrors the registry into PostgreSQL: a periodic snapshot of
// live references and an append-only journal of lifecycle events.
package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/l1jgo/gamefactory/internal/config"
	"go.uber.org/zap"
)

const pingTimeout = 5 * time.Second

// DB owns the pgx pool used by the snapshot and journal repos.
type DB struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// NewDB opens the pool and pings it once so a bad DSN fails at boot.
func NewDB(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	log = log.With(zap.String("component", "persist"))
	log.Info("database connected",
		zap.String("host", poolCfg.ConnConfig.Host),
		zap.String("database", poolCfg.ConnConfig.Database),
		zap.Int32("max_conns", poolCfg.MaxConns),
	)
	return &DB{pool: pool, log: log}, nil
}

// Begin starts a transaction on a pooled connection.
func (db *DB) Begin(ctx context.Context) (pgx.Tx, error) {
	return db.pool.Begin(ctx)
}

// Pool exposes the underlying pool for migrations.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Close logs the final pool counters and closes every connection.
func (db *DB) Close() {
	st := db.pool.Stat()
	db.log.Info("database closing",
		zap.Int64("acquired_total", st.AcquireCount()),
		zap.Int32("idle", st.IdleConns()),
	)
	db.pool.Close()
}
