package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/m3rciful/neuroquiz/core/logger"
)

// Connect opens the database connection, configures the pool, and verifies connectivity.
// The server is pinged until it answers or the configured connect timeout elapses.
func Connect(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}

	start := time.Now()
	db, err := sqlx.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		logger.DB.Error("db open failed",
			slog.String("event", "db.connect"),
			slog.String("driver", cfg.Driver),
			slog.String("db", cfg.Target()),
			logger.Err(err),
		)
		return nil, fmt.Errorf("db open: %w", err)
	}

	if cfg.InMemory() {
		// every new connection would see an empty database
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(cfg.MaxConnections)
		db.SetMaxIdleConns(cfg.MaxConnections)
	}
	logger.DB.Debug("db pool configured",
		slog.String("event", "db.pool"),
		slog.Int("pool_open", cfg.MaxConnections),
	)

	waitCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout())
	defer cancel()
	attempts, err := waitReady(waitCtx, db, 2*time.Second)
	took := time.Since(start)
	if err != nil {
		_ = db.Close()
		logger.DB.Error("db ping failed",
			slog.String("event", "db.ping"),
			slog.String("driver", cfg.Driver),
			slog.String("db", cfg.Target()),
			slog.Int("attempts", attempts),
			slog.Duration("duration", logger.RoundMS(took)),
			logger.Err(err),
		)
		return nil, fmt.Errorf("db ping: %w", err)
	}

	logger.DB.Info("db connected",
		slog.String("event", "db.connect"),
		slog.String("driver", cfg.Driver),
		slog.String("db", cfg.Target()),
		slog.Int("attempts", attempts),
		slog.Duration("duration", logger.RoundMS(took)),
	)
	return db, nil
}

// waitReady pings db until it answers or ctx expires.
func waitReady(ctx context.Context, db *sqlx.DB, every time.Duration) (int, error) {
	attempts := 0
	for {
		attempts++
		err := db.PingContext(ctx)
		if err == nil {
			return attempts, nil
		}
		select {
		case <-ctx.Done():
			return attempts, fmt.Errorf("timeout reached waiting for database: %w", err)
		case <-time.After(every):
		}
	}
}
