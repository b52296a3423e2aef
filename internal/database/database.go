// Package database centralises sqlx connection helpers.  The default
// driver is go-sql-driver/mysql, which also works with MariaDB when
// configured for the MySQL wire protocol.
//
// Public entry points:
//
//	Open(ctx, dsn)                    – helper with conservative pool sizes.
//	OpenWithOptions(ctx, dsn, opts)   – fine-grained control.
//
// Both helpers Ping the database before returning so callers can fail
// fast during bootstrap.  Callers should Close() the returned *sqlx.DB
// when no longer needed.
package database

import (
	"context"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// Options tunes one connection pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Retries         int
	RetryBackoff    time.Duration
}

// Open returns a *sqlx.DB with sane defaults: 15 max open, 5 idle, and a
// 30-minute connection lifetime.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	return OpenWithOptions(ctx, dsn, Options{
		MaxOpenConns:    15,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	})
}

// OpenWithOptions lets callers tune the pool.  A failed initial Ping is
// retried opts.Retries times with opts.RetryBackoff between attempts;
// transient DNS or start-order hiccups at boot resolve within a retry or
// two.
func OpenWithOptions(ctx context.Context, dsn string, opts Options) (*sqlx.DB, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	err = db.PingContext(ctx)
	for i := 0; err != nil && i < opts.Retries; i++ {
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(opts.RetryBackoff):
		}
		err = db.PingContext(ctx)
	}
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
