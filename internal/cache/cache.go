// Package cache provides the response cache used by the generation pipeline.
// Two implementations are available: an unbounded in-memory map (the default)
// and a bounded LRU selected by configuration.
//
// Values are stored and returned as-is. Callers that hand out cached values
// must copy them first — the pipeline clones results on both put and get so
// a stored entry is never mutated through an alias.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Cache is the minimal get/put contract the generation pipeline depends on.
// Implementations must be safe for concurrent use.
type Cache[V any] interface {
	// Get returns the value stored under key, if any.
	Get(key string) (V, bool)
	// Put stores value under key, replacing any existing entry.
	Put(key string, value V)
}

// Key derives a cache key from an ordered list of request fields. Each field
// is prefixed with its length as an 8-byte big-endian integer before hashing,
// so ("a-b","c") and ("a","b-c") can never collide the way plain
// concatenation would. The result is the hex-encoded SHA-256 digest.
func Key(parts ...string) string {
	h := sha256.New()
	var lenBuf [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(p)))
		h.Write(lenBuf[:])
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
