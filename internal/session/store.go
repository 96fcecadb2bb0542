// Package session holds per-phone ephemeral state behind a swappable store.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when no live entry exists for the key
var ErrNotFound = errors.New("session entry not found")

// Store keeps short-lived values keyed by phone number. Implementations are
// safe for concurrent use; they do not serialise read-modify-write cycles
// performed by callers.
type Store[V any] interface {
	Get(ctx context.Context, key string) (V, error)
	Set(ctx context.Context, key string, value V, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// SweepExpired drops entries whose TTL elapsed and reports how many went
	SweepExpired(ctx context.Context) (int, error)
	Keys(ctx context.Context) ([]string, error)
}
