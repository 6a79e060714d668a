// Package cmap provides a sharded concurrent map keyed by integer ids.
//
// Keys are spread over shards with murmur3 so that sequential ids (request
// ids, chunk ids) do not pile onto one shard. Each shard has its own
// RWMutex.
//
// Usage:
//
//	m := cmap.New[int64, Request]()
//	m.Set(id, req)
//	val, ok := m.Get(id)
package cmap
