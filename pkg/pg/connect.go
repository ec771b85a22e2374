package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func poolConfig(cfg Config) (*pgxpool.Config, error) {
	if cfg.ConnectionString == "" {
		return nil, ErrNoURL
	}
	pc, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, errors.Join(ErrBadConfig, err)
	}
	if cfg.MaxOpenConns > 0 {
		pc.MaxConns = cfg.MaxOpenConns
	}
	pc.MinConns = min(cfg.MaxIdleConns, pc.MaxConns)
	for dst, v := range map[*time.Duration]time.Duration{
		&pc.HealthCheckPeriod: cfg.HealthCheckPeriod,
		&pc.MaxConnIdleTime:   cfg.MaxConnIdleTime,
		&pc.MaxConnLifetime:   cfg.MaxConnLifetime,
	} {
		if v > 0 {
			*dst = v
		}
	}
	return pc, nil
}

// Connect opens a pool and pings it. Failed attempts are retried with a delay
// of attempt*RetryInterval.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	var errs []error
	for attempt := range max(cfg.RetryAttempts, 1) {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, errors.Join(ErrConnect, ctx.Err())
			case <-time.After(time.Duration(attempt) * cfg.RetryInterval):
			}
		}
		pool, err := open(ctx, pc)
		if err == nil {
			return pool, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(ErrConnect, errors.Join(errs...))
}

func open(ctx context.Context, pc *pgxpool.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
