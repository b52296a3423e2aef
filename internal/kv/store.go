// internal/kv/store.go
//
// Cache-backend contract.
//
// Context
// -------
// Every cross-request cache tier (query-result cache, page cache, metrics
// snapshot, warming reports) talks to one key-value backend through this
// interface.  Redis is the production implementation; an in-memory map
// backs tests and `--dev` runs.  The contract is deliberately small:
// get/put/delete by string key with TTL, typed as either a JSON document
// or a raw byte payload.
//
// Failure policy: callers treat every error from this interface as a
// cache miss or a no-op.  Nothing in the request path depends on the
// backend being reachable.
//
// Notes
// -----
//   - Oxford commas, two spaces after periods.
package kv

import (
	"context"
	"time"
)

// Store is the key-value cache backend contract.
type Store interface {
	// GetJSON unmarshals the value at key into dest.  The boolean is
	// false on a miss; err is reserved for backend or decode failures.
	GetJSON(ctx context.Context, key string, dest any) (bool, error)

	// PutJSON marshals v and stores it under key with the given TTL.
	PutJSON(ctx context.Context, key string, v any, ttl time.Duration) error

	// GetBytes returns the raw payload at key, with a miss boolean.
	GetBytes(ctx context.Context, key string) ([]byte, bool, error)

	// PutBytes stores a raw payload under key with the given TTL.
	PutBytes(ctx context.Context, key string, b []byte, ttl time.Duration) error

	// Delete removes key.  Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// DeletePattern removes every key matching a glob pattern and
	// reports how many were removed.  Used by the admin purge endpoint.
	DeletePattern(ctx context.Context, pattern string) (int, error)

	// Ping probes backend connectivity for the debug endpoints.
	Ping(ctx context.Context) error
}
