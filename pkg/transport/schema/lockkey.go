package schema

import (
	// Packages
	xxhash "github.com/cespare/xxhash/v2"
)

// DeriveLockKey returns the advisory lock key for a purpose within a
// schema: the 64-bit xxHash (seed zero) of "{schema}:{purpose}". The value
// depends only on the two strings, so every process computes the same key.
func DeriveLockKey(schema, purpose string) int64 {
	return int64(xxhash.Sum64String(schema + ":" + purpose))
}

// FoldLockKey32 folds a lock key into 32 bits by xor of the high and low
// words, for lock primitives with a 32-bit key. Every input bit affects the
// result, but collisions become likely at tens of thousands of keys rather
// than billions.
func FoldLockKey32(key int64) int32 {
	return int32(uint32(uint64(key)>>32) ^ uint32(uint64(key)))
}
