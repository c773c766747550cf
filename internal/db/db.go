// internal/db/db.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

var (
	ErrFailedToOpenDBConnection = errors.New("db: failed to open database connection")
	ErrSetDialect               = errors.New("db migrator: failed to set dialect")
	ErrApplyMigrations          = errors.New("db migrator: failed to apply migrations")
)

// Options tune the connection pool and the startup retry loop.
type Options struct {
	MaxOpenConns  int
	MaxIdleConns  int
	RetryAttempts int
	RetryInterval time.Duration
}

var DefaultOptions = Options{
	MaxOpenConns:  20,
	MaxIdleConns:  5,
	RetryAttempts: 5,
	RetryInterval: time.Second,
}

// Open connects to Postgres through lib/pq and pings until the database
// answers or the attempts run out. Waits grow linearly between attempts.
func Open(ctx context.Context, dsn string, opts Options, log *slog.Logger) (*sql.DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Join(ErrFailedToOpenDBConnection, err)
	}
	conn.SetMaxOpenConns(opts.MaxOpenConns)
	conn.SetMaxIdleConns(opts.MaxIdleConns)

	attempts := max(opts.RetryAttempts, 1)
	for i := range attempts {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			log.Info("✅ Connected to database")
			return conn, nil
		}
		log.Warn("database not ready", slog.Int("attempt", i+1), slog.Any("error", err))

		select {
		case <-ctx.Done():
			conn.Close()
			return nil, errors.Join(ErrFailedToOpenDBConnection, ctx.Err())
		case <-time.After(time.Duration(i+1) * opts.RetryInterval):
		}
	}
	conn.Close()
	return nil, errors.Join(ErrFailedToOpenDBConnection, err)
}
