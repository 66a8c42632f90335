// Package tokenstore keeps the only server-side token state the service has:
// the set of revoked session tokens and the single-use password-reset
// mapping. Both sit on top of Store, a small key-value contract with an
// atomic take, so the same logic runs against process memory or Redis.
package tokenstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// ErrNotFound is returned when a reset token has no live entry.
var ErrNotFound = errors.New("token not found")

// Store is a concurrency-safe string key-value store.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Put stores value under key. A ttl of zero means the entry never expires.
	Put(ctx context.Context, key, value string, ttl time.Duration) error

	// Take removes key and returns its value in one atomic step. Of several
	// concurrent callers for the same key, at most one sees ok == true.
	Take(ctx context.Context, key string) (value string, ok bool, err error)
}

// hashKey keys entries by SHA-256 of the raw token so plaintext bearer
// credentials never sit in the backing store.
func hashKey(prefix, raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return prefix + hex.EncodeToString(sum[:])
}
