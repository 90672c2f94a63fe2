package db

import (
	"context"
	"fmt"

	"glxy/internal/logger"
	"glxy/internal/retry"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pool and pings it, retrying with the given policy while the
// database is still coming up.
func Connect(ctx context.Context, dsn string, policy retry.Policy) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	var pool *pgxpool.Pool
	err = policy.Do(ctx, func(ctx context.Context) error {
		p, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			logger.Warn("failed to create database pool", "error", err)
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			logger.Warn("failed to ping database", "error", err)
			return err
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	logger.Info("database connected")
	return pool, nil
}
