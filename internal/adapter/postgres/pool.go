package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/zengin-sync/internal/config"
	"github.com/heartmarshall/zengin-sync/internal/domain"
)

// ApplicationName is reported in pg_stat_activity unless the DSN sets one.
const ApplicationName = "zengin-sync"

// NewPool opens a pool on the bank master database and pings it once.
// Failing to reach the server wraps domain.ErrDependency; a malformed DSN
// does not, and its text is never echoed since it may carry a password.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", domain.NewValidationError("database.dsn", "unparsable"))
	}

	if poolCfg.ConnConfig.RuntimeParams["application_name"] == "" {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = ApplicationName
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w: %w", domain.ErrDependency, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping %s/%s: %w: %w",
			poolCfg.ConnConfig.Host, poolCfg.ConnConfig.Database, domain.ErrDependency, err)
	}

	return pool, nil
}
