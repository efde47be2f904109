package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ckbrelay/internal/application"
	"ckbrelay/internal/config"
	"ckbrelay/internal/infrastructure/mysql"
	"ckbrelay/internal/infrastructure/sqlite"
)

// Store is everything the relayer, the auditor and the HTTP API need from
// persistence.
type Store interface {
	application.RelayRepository
	application.CallRecordRepository
	RelayedRange(ctx context.Context) (uint64, uint64, bool, error)
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*mysql.Repository)(nil)
	_ Store = (*mysql.CachedRepository)(nil)
	_ Store = (*sqlite.Repository)(nil)
)

// Open picks the backend named by DB_DRIVER. MySQL gets the Redis cache in
// front when REDIS_ADDR is reachable; an unreachable cache is logged and
// skipped.
func Open(cfg config.Config) (Store, error) {
	switch cfg.DBDriver {
	case config.DriverSQLite:
		repo, err := sqlite.NewRepository(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		return repo, nil
	case config.DriverMySQL, "":
		base, err := mysql.NewRepository(cfg.DBDSN)
		if err != nil {
			return nil, fmt.Errorf("mysql: %w", err)
		}
		cached, err := mysql.NewCachedRepository(base, mysql.CacheConfig{
			Addr: cfg.RedisAddr,
			TTL:  time.Hour,
		})
		if err != nil {
			slog.Warn("redis cache disabled", "addr", cfg.RedisAddr, "err", err)
			return base, nil
		}
		return cached, nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.DBDriver)
	}
}
