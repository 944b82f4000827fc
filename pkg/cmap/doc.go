// Package cmap provides a concurrent map for meshbus.
//
// The map is split into a power-of-two number of shards, each guarded by its
// own RWMutex. Shard selection hashes the key with murmur3.
//
// Usage:
//
//	m := cmap.New[string, Handler]()
//	m.Set("player_message", h)
//	h, ok := m.Get("player_message")
//
// Readers never observe a half-written entry: Set replaces the value under
// the shard's write lock, Get reads it under the read lock.
package cmap
