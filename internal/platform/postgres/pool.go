package postgres

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scootsmagoo/filtersfast-next-sub010/internal/platform/config"
)

var (
	newPoolWithConfig = pgxpool.NewWithConfig
	connectRetries    = 10
	retryDelay        = 2 * time.Second
	pingTimeout       = 2 * time.Second
)

// NewPool opens a pgx pool and waits until the database answers a ping.
// Deployed environments must use an sslmode that encrypts the connection.
func NewPool(ctx context.Context, cfg config.PostgresConfig, security config.SecurityConfig) (*pgxpool.Pool, error) {
	if !security.IsLocal() {
		if err := requireTLS(cfg.DSN); err != nil {
			return nil, err
		}
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MinConns = 1
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	var lastErr error
	for attempt := 0; attempt < connectRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}
		pool, err := newPoolWithConfig(ctx, poolCfg)
		if err != nil {
			lastErr = err
			continue
		}
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err = pool.Ping(pingCtx)
		cancel()
		if err == nil {
			return pool, nil
		}
		lastErr = err
		pool.Close()
	}
	return nil, fmt.Errorf("postgres: ping retries exhausted: %w", lastErr)
}

func requireTLS(dsn string) error {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return fmt.Errorf("postgres: invalid dsn: %w", err)
	}
	switch mode := strings.ToLower(strings.TrimSpace(parsed.Query().Get("sslmode"))); mode {
	case "require", "verify-ca", "verify-full":
		return nil
	case "":
		return fmt.Errorf("postgres: dsn must set sslmode=require|verify-ca|verify-full")
	default:
		return fmt.Errorf("postgres: sslmode=%q is not allowed outside local environments", mode)
	}
}
