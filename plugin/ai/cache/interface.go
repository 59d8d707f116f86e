// Package cache provides byte caches used to keep recently built context
// payloads. An in-process LRU serves single-node setups; Redis shares entries
// across instances.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// CacheService is a byte cache with per-entry TTL.
type CacheService interface {
	// Get returns the value and whether a live entry exists.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a value. A non-positive ttl uses the backend default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Invalidate removes one key, or every key with the prefix when the
	// pattern ends with '*'.
	Invalidate(ctx context.Context, pattern string) error
}

// Key builds a namespaced cache key. The caller-provided parts are hashed so
// session identifiers never appear verbatim in the backend.
func Key(namespace string, parts ...string) string {
	return namespace + ":" + KeyHash(strings.Join(parts, "\x00"))
}

// KeyHash returns the first 16 hex characters of the SHA-256 of s.
func KeyHash(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])[:16]
}
